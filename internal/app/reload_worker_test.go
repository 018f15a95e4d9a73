//go:build !windows

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zapretd/internal/domain"
)

func installSleepingWorker(t *testing.T, cfg Config) {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.BinDir, 0o755))
	script := "#!/bin/sh\nexec sleep 30\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.BinDir, domain.DefaultWorkerName), []byte(script), 0o755))
}

func TestProfileReloaderRestartsOnSelectedProfileEdit(t *testing.T) {
	a, cfg := newTestApp(t, nil, false)
	installSleepingWorker(t, cfg)
	path := writeProfile(t, cfg, domain.CategoryDiscord, "discord", "--name=one\n")
	profile, err := a.LookupProfile(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background(), []domain.Profile{profile}, domain.Toggles{}))
	t.Cleanup(func() {
		_ = a.Stop(context.Background())
	})
	before := a.Workers()
	require.Len(t, before, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewProfileReloader(a, []domain.Profile{profile}, nil)
	reloaded := make(chan error, 1)
	r.OnReload(func(_ []string, err error) {
		select {
		case reloaded <- err:
		default:
		}
	})
	r.Start(ctx)

	// The watcher registers asynchronously; keep touching the profile until it notices.
	require.Eventually(t, func() bool {
		if r.Reloads() > 0 {
			return true
		}
		_ = os.WriteFile(path, []byte("--name=two\n"), 0o644)
		return false
	}, 5*time.Second, 100*time.Millisecond)
	require.NoError(t, <-reloaded)

	after := a.Workers()
	require.Len(t, after, 1)
	require.NotEqual(t, before[0].PID, after[0].PID)
	require.True(t, a.IsRunning())
}
