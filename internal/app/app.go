package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"zapretd/internal/domain"
	"zapretd/internal/infra/conflicts"
	"zapretd/internal/infra/materialize"
	"zapretd/internal/infra/netreset"
	"zapretd/internal/infra/orchestrator"
	"zapretd/internal/infra/proctable"
	"zapretd/internal/infra/profiles"
	"zapretd/internal/infra/settings"
	"zapretd/internal/infra/telemetry"
)

// Options wires an App. Zero values select the real system implementations.
type Options struct {
	Config  Config
	Logger  *zap.Logger
	Metrics domain.Metrics
	Table   proctable.Table
	Runner  netreset.Runner
	// OpenSettings opens the settings store, which also takes the
	// single-instance lock for the lifetime of the App.
	OpenSettings bool
}

// App is the caller-facing surface: profile listing, conflict detection,
// worker control, settings and network reset.
type App struct {
	cfg     Config
	logger  *zap.Logger
	metrics domain.Metrics

	profiles     *profiles.Store
	watcher      *profiles.Watcher
	conflicts    *conflicts.Detector
	orchestrator *orchestrator.Orchestrator
	resetter     *netreset.Resetter
	settings     *settings.Store

	queueMu   sync.Mutex
	pending   []job
	closed    bool
	wake      chan struct{}
	queueDone chan struct{}
	closeOnce sync.Once
}

type job struct {
	run    func(context.Context) error
	ctx    context.Context
	result chan error
}

func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	table := opts.Table
	if table == nil {
		table = proctable.NewSystem()
	}
	cfg := opts.Config

	orch, err := orchestrator.New(orchestrator.Options{
		AppRoot:      cfg.Root,
		WorkerName:   cfg.WorkerName,
		BinDir:       cfg.BinDir,
		Materializer: materialize.New(cfg.ScratchDir, logger),
		Table:        table,
		Logger:       logger,
		Metrics:      metrics,
		SettleDelay:  cfg.SettleDelay,
		SpawnDelay:   cfg.SpawnDelay,
		RestartDelay: cfg.RestartDelay,
		StopTimeout:  cfg.StopTimeout,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		logger:       logger.Named("app"),
		metrics:      metrics,
		profiles:     profiles.NewStore(cfg.ProfilesDir, logger),
		watcher:      profiles.NewWatcher(cfg.ProfilesDir, logger),
		conflicts:    conflicts.New(conflicts.Options{Table: table, Metrics: metrics, Logger: logger}),
		orchestrator: orch,
		resetter:     netreset.New(netreset.Options{Runner: opts.Runner, Logger: logger}),
		wake:         make(chan struct{}, 1),
		queueDone:    make(chan struct{}),
	}

	if opts.OpenSettings {
		store, err := settings.Open(cfg.SettingsPath, logger)
		if err != nil {
			return nil, err
		}
		a.settings = store
	}

	go a.runQueue()
	return a, nil
}

func (a *App) Config() Config {
	return a.cfg
}

func (a *App) ListAllProfiles(ctx context.Context) []domain.Profile {
	return a.profiles.ListAll(ctx)
}

func (a *App) ListProfilesForCategory(ctx context.Context, category domain.Category) []domain.Profile {
	return a.profiles.ListForCategory(ctx, category)
}

// LookupProfile resolves a profile file path against the profile tree.
func (a *App) LookupProfile(ctx context.Context, path string) (domain.Profile, error) {
	profile, ok := a.profiles.Lookup(ctx, path)
	if !ok {
		return domain.Profile{}, domain.E(domain.CodeNotFound, "app.lookup_profile", path, domain.ErrProfileNotFound)
	}
	return profile, nil
}

func (a *App) DetectConflicts(ctx context.Context) []string {
	return a.conflicts.Detect(ctx)
}

func (a *App) Start(ctx context.Context, selected []domain.Profile, toggles domain.Toggles) error {
	return a.orchestrator.Start(ctx, selected, toggles)
}

func (a *App) Stop(ctx context.Context) error {
	return a.orchestrator.Stop(ctx)
}

func (a *App) Restart(ctx context.Context) error {
	return a.orchestrator.Restart(ctx)
}

func (a *App) IsRunning() bool {
	return a.orchestrator.IsRunning()
}

func (a *App) Workers() []orchestrator.WorkerInfo {
	return a.orchestrator.Workers()
}

func (a *App) SubscribeStatus(buffer int) (<-chan domain.StatusEvent, func()) {
	return a.orchestrator.Subscribe(buffer)
}

// Health summarises worker state for the /healthz endpoint; status is "ok"
// only while workers run.
func (a *App) Health() telemetry.HealthReport {
	workers := 0
	for _, worker := range a.orchestrator.Workers() {
		if !worker.Exited {
			workers++
		}
	}
	status := "idle"
	if workers > 0 {
		status = "ok"
	}
	return telemetry.HealthReport{
		Status:  status,
		Running: workers > 0,
		Workers: workers,
	}
}

func (a *App) ResetNetwork(ctx context.Context, progress func(string)) netreset.Report {
	return a.resetter.Reset(ctx, progress)
}

// WatchProfiles reports profile tree changes until ctx is done.
func (a *App) WatchProfiles(ctx context.Context) <-chan profiles.Change {
	return a.watcher.Watch(ctx)
}

// StartAsync queues a Start; requests run one at a time in submission order.
func (a *App) StartAsync(ctx context.Context, selected []domain.Profile, toggles domain.Toggles) <-chan error {
	return a.enqueue(ctx, func(ctx context.Context) error {
		return a.Start(ctx, selected, toggles)
	})
}

func (a *App) StopAsync(ctx context.Context) <-chan error {
	return a.enqueue(ctx, a.Stop)
}

func (a *App) RestartAsync(ctx context.Context) <-chan error {
	return a.enqueue(ctx, a.Restart)
}

var errAppClosed = errors.New("app is closed")

// enqueue appends to the pending FIFO and returns at once; runQueue drains it.
func (a *App) enqueue(ctx context.Context, run func(context.Context) error) <-chan error {
	result := make(chan error, 1)
	a.queueMu.Lock()
	if a.closed {
		a.queueMu.Unlock()
		result <- errAppClosed
		return result
	}
	a.pending = append(a.pending, job{run: run, ctx: ctx, result: result})
	a.queueMu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return result
}

// next pops the oldest pending job.
func (a *App) next() (job, bool) {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	if len(a.pending) == 0 {
		return job{}, false
	}
	j := a.pending[0]
	a.pending[0] = job{}
	a.pending = a.pending[1:]
	return j, true
}

func (a *App) runQueue() {
	for {
		select {
		case <-a.queueDone:
			return
		case <-a.wake:
		}
		for {
			j, ok := a.next()
			if !ok {
				break
			}
			if err := j.ctx.Err(); err != nil {
				j.result <- err
				continue
			}
			j.result <- j.run(j.ctx)
		}
	}
}

// Close stops accepting queued requests and releases the settings store.
// Running workers are left alone; call Stop first to end them.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.queueMu.Lock()
		a.closed = true
		dropped := a.pending
		a.pending = nil
		a.queueMu.Unlock()
		for _, j := range dropped {
			j.result <- errAppClosed
		}
		close(a.queueDone)
		if a.settings != nil {
			err = a.settings.Close()
		}
	})
	return err
}
