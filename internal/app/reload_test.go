package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"zapretd/internal/domain"
)

func TestProfileReloaderAffected(t *testing.T) {
	dir := t.TempDir()
	running := domain.Profile{FilePath: filepath.Join(dir, "discord", "a.conf")}
	r := NewProfileReloader(nil, []domain.Profile{running}, nil)

	got := r.affected([]string{
		filepath.Join(dir, "discord", "b.conf"),
		filepath.Join(dir, "discord", ".", "a.conf"),
	})
	require.Equal(t, []string{filepath.Join(dir, "discord", ".", "a.conf")}, got)
	require.Empty(t, r.affected(nil))
}

func TestProfileReloaderSkipsWhenStopped(t *testing.T) {
	a, cfg := newTestApp(t, nil, false)
	path := writeProfile(t, cfg, domain.CategoryDiscord, "discord", "--b\n")
	profile, err := a.LookupProfile(context.Background(), path)
	require.NoError(t, err)

	r := NewProfileReloader(a, []domain.Profile{profile}, nil)
	called := false
	r.OnReload(func([]string, error) { called = true })

	r.apply(context.Background(), []string{path})
	require.False(t, called)
	require.Zero(t, r.Reloads())
}
