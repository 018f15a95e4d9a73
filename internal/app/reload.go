package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"zapretd/internal/domain"
	"zapretd/internal/infra/profiles"
)

// ProfileReloader restarts the running workers when a profile they were
// started from changes on disk.
type ProfileReloader struct {
	app      *App
	logger   *zap.Logger
	running  map[string]struct{}
	reloads  atomic.Uint64
	started  atomic.Bool
	onReload func(paths []string, err error)
}

func NewProfileReloader(a *App, selected []domain.Profile, logger *zap.Logger) *ProfileReloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	running := make(map[string]struct{}, len(selected))
	for _, profile := range selected {
		running[filepath.Clean(profile.FilePath)] = struct{}{}
	}
	return &ProfileReloader{
		app:     a,
		logger:  logger.Named("reload"),
		running: running,
	}
}

// OnReload registers a hook called after each restart attempt.
func (r *ProfileReloader) OnReload(fn func(paths []string, err error)) {
	r.onReload = fn
}

// Reloads counts restarts triggered so far.
func (r *ProfileReloader) Reloads() uint64 {
	return r.reloads.Load()
}

// Start begins watching until ctx is done.
func (r *ProfileReloader) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	changes := r.app.WatchProfiles(ctx)
	go r.run(ctx, changes)
}

func (r *ProfileReloader) run(ctx context.Context, changes <-chan profiles.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			affected := r.affected(change.Paths)
			if len(affected) == 0 {
				continue
			}
			r.apply(ctx, affected)
		}
	}
}

func (r *ProfileReloader) affected(paths []string) []string {
	var out []string
	for _, path := range paths {
		if _, ok := r.running[filepath.Clean(path)]; ok {
			out = append(out, path)
		}
	}
	return out
}

func (r *ProfileReloader) apply(ctx context.Context, paths []string) {
	if !r.app.IsRunning() {
		r.logger.Debug("profile changed while stopped", zap.Strings("paths", paths))
		return
	}
	started := time.Now()
	err := <-r.app.RestartAsync(ctx)
	r.reloads.Add(1)
	if err != nil {
		r.logger.Warn("profile reload failed", zap.Strings("paths", paths), zap.Error(err))
	} else {
		r.logger.Info("profiles reloaded",
			zap.Strings("paths", paths),
			zap.Duration("duration", time.Since(started)),
		)
	}
	if r.onReload != nil {
		r.onReload(paths, err)
	}
}
