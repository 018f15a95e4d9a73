package profiles

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zapretd/internal/domain"
)

func TestWatcherReportsProfileChanges(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, domain.CategoryDiscord.FolderName())
	require.NoError(t, os.MkdirAll(dir, 0o755))

	w := NewWatcher(root, zap.NewNop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := w.Watch(ctx)

	path := filepath.Join(dir, "new.conf")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("--x"), 0o644)
		select {
		case change := <-changes:
			return slices.Contains(change.Paths, path)
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestIsProfilePath(t *testing.T) {
	root := filepath.Join("srv", "configs")
	w := NewWatcher(root, nil)
	require.True(t, w.isProfilePath(filepath.Join(root, "gaming", "a.conf")))
	require.True(t, w.isProfilePath(filepath.Join(root, "gaming", "A.CONF")))
	require.False(t, w.isProfilePath(filepath.Join(root, "gaming", "a.txt")))
	require.False(t, w.isProfilePath(filepath.Join(root, "music", "a.conf")))
	require.False(t, w.isProfilePath(filepath.Join(root, "a.conf")))
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
}
