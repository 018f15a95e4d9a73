package profiles

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"zapretd/internal/domain"
)

const defaultWatchDebounce = 200 * time.Millisecond

// Change reports that the profile set on disk was modified.
type Change struct {
	Paths []string
	At    time.Time
}

// Watcher notifies subscribers when profile files are added, removed or edited.
type Watcher struct {
	root     string
	ext      string
	debounce time.Duration
	logger   *zap.Logger

	subsMu sync.Mutex
	subs   map[chan Change]struct{}

	runOnce sync.Once
}

func NewWatcher(root string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		root:     root,
		ext:      domain.DefaultProfileExtension,
		debounce: defaultWatchDebounce,
		logger:   logger.Named("profile_watcher"),
		subs:     make(map[chan Change]struct{}),
	}
}

// Watch subscribes to changes until ctx is done. The watcher goroutine is started
// by the first subscription and lives until ctx of that first call ends.
func (w *Watcher) Watch(ctx context.Context) <-chan Change {
	ch := make(chan Change, 1)
	w.subsMu.Lock()
	w.subs[ch] = struct{}{}
	w.subsMu.Unlock()

	w.runOnce.Do(func() {
		go w.run(ctx)
	})

	go func() {
		<-ctx.Done()
		w.subsMu.Lock()
		delete(w.subs, ch)
		w.subsMu.Unlock()
	}()
	return ch
}

func (w *Watcher) run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("profile watcher failed", zap.Error(err))
		return
	}
	defer watcher.Close()

	for _, path := range w.watchPaths() {
		if err := watcher.Add(path); err != nil {
			w.logger.Debug("profile watcher add failed", zap.String("path", path), zap.Error(err))
		}
	}

	var (
		timer   *time.Timer
		pending []string
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("profile watcher error", zap.Error(err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isCategoryDir(w.root, event.Name) {
				if err := watcher.Add(event.Name); err != nil {
					w.logger.Debug("profile watcher add failed", zap.String("path", event.Name), zap.Error(err))
				}
			}
			if !w.isProfilePath(event.Name) {
				continue
			}
			pending = append(pending, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.broadcast(Change{Paths: dedupe(pending), At: time.Now()})
			pending = nil
		}
	}
}

func (w *Watcher) broadcast(change Change) {
	w.subsMu.Lock()
	subs := make([]chan Change, 0, len(w.subs))
	for ch := range w.subs {
		subs = append(subs, ch)
	}
	w.subsMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (w *Watcher) watchPaths() []string {
	paths := []string{w.root}
	for _, category := range domain.Categories() {
		paths = append(paths, filepath.Join(w.root, category.FolderName()))
	}
	return paths
}

func (w *Watcher) isProfilePath(path string) bool {
	if path == "" || !strings.EqualFold(filepath.Ext(path), w.ext) {
		return false
	}
	return isCategoryDir(w.root, filepath.Dir(path))
}

func isCategoryDir(root string, dir string) bool {
	if filepath.Clean(filepath.Dir(dir)) != filepath.Clean(root) {
		return false
	}
	base := filepath.Base(dir)
	for _, category := range domain.Categories() {
		if base == category.FolderName() {
			return true
		}
	}
	return false
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
