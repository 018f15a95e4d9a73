package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zapretd/internal/domain"
	"zapretd/internal/infra/materialize"
	"zapretd/internal/infra/proctable"
	"zapretd/internal/infra/profiles"
	"zapretd/internal/infra/telemetry"
)

// State is the orchestrator lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Materializer resolves the argument file for a profile under the given toggles.
type Materializer interface {
	Materialize(profile domain.Profile, toggles domain.Toggles) (string, error)
	PurgeScratch()
}

type Options struct {
	AppRoot      string
	WorkerName   string
	BinDir       string
	Materializer Materializer
	Table        proctable.Table
	Logger       *zap.Logger
	Metrics      domain.Metrics
	SettleDelay  time.Duration
	SpawnDelay   time.Duration
	RestartDelay time.Duration
	StopTimeout  time.Duration
}

type request struct {
	profiles []domain.Profile
	toggles  domain.Toggles
}

// Orchestrator owns the set of running worker processes.
type Orchestrator struct {
	root         string
	workerName   string
	workerPath   string
	materializer Materializer
	table        proctable.Table
	logger       *zap.Logger
	metrics      domain.Metrics

	settleDelay  time.Duration
	spawnDelay   time.Duration
	restartDelay time.Duration
	stopTimeout  time.Duration

	opMu sync.Mutex
	last *request

	mu      sync.RWMutex
	state   State
	handles []*handle
	// generation changes on every stop; exit watchers from an older set
	// must not report status.
	generation uint64

	status statusHub
}

func New(opts Options) (*Orchestrator, error) {
	if strings.TrimSpace(opts.AppRoot) == "" {
		return nil, domain.E(domain.CodeInvalidArgument, "orchestrator.new", "app root is required", nil)
	}
	root, err := filepath.Abs(opts.AppRoot)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvalidArgument, "orchestrator.new", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("orchestrator")

	workerName := opts.WorkerName
	if workerName == "" {
		workerName = domain.DefaultWorkerName
	}
	binDir := opts.BinDir
	if binDir == "" {
		binDir = domain.DefaultBinDirName
	}
	if !filepath.IsAbs(binDir) {
		binDir = filepath.Join(root, binDir)
	}
	materializer := opts.Materializer
	if materializer == nil {
		materializer = materialize.New(filepath.Join(root, domain.DefaultScratchDirName), logger)
	}
	table := opts.Table
	if table == nil {
		table = proctable.NewSystem()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	o := &Orchestrator{
		root:         root,
		workerName:   workerName,
		workerPath:   filepath.Join(binDir, workerFileName(workerName)),
		materializer: materializer,
		table:        table,
		logger:       logger,
		metrics:      metrics,
		settleDelay:  durationOr(opts.SettleDelay, domain.DefaultSettleDelay),
		spawnDelay:   durationOr(opts.SpawnDelay, domain.DefaultSpawnDelay),
		restartDelay: durationOr(opts.RestartDelay, domain.DefaultRestartDelay),
		stopTimeout:  durationOr(opts.StopTimeout, domain.DefaultStopTimeout),
		state:        StateIdle,
	}
	o.status.logger = logger
	return o, nil
}

// WorkerPath is the executable the orchestrator launches.
func (o *Orchestrator) WorkerPath() string {
	return o.workerPath
}

// Start stops everything currently running, then launches one worker per
// profile in priority order. Only a missing worker executable is reported.
// The executable is checked when the first profile with arguments is about to
// spawn, so a selection of empty or comment-only profiles succeeds without one.
func (o *Orchestrator) Start(ctx context.Context, selected []domain.Profile, toggles domain.Toggles) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.last = &request{profiles: slices.Clone(selected), toggles: toggles}
	o.stop(ctx)
	return o.launch(ctx, o.last.profiles, toggles)
}

// Stop terminates every worker, sweeps leftover worker processes and purges
// scratch files. It always runs to completion; ctx cancellation is ignored.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.stop(ctx)
	return nil
}

// Restart stops and relaunches the last requested profile set. Without a
// previous Start it only stops.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.stop(ctx)
	if o.last == nil {
		return nil
	}
	sleep(ctx, o.restartDelay)
	return o.launch(ctx, o.last.profiles, o.last.toggles)
}

// IsRunning reports whether at least one worker has not exited.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return liveCount(o.handles) > 0
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// WorkerInfo describes one spawned worker.
type WorkerInfo struct {
	PID       int
	Profile   domain.Profile
	StartedAt time.Time
	Exited    bool
	ExitCode  int
}

// Workers lists spawned workers in spawn order.
func (o *Orchestrator) Workers() []WorkerInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]WorkerInfo, 0, len(o.handles))
	for _, h := range o.handles {
		exited, code := h.exitStatus()
		out = append(out, WorkerInfo{
			PID:       h.pid,
			Profile:   h.profile,
			StartedAt: h.startedAt,
			Exited:    exited,
			ExitCode:  code,
		})
	}
	return out
}

// Subscribe registers a status observer channel. Events are dropped when the
// buffer is full.
func (o *Orchestrator) Subscribe(buffer int) (<-chan domain.StatusEvent, func()) {
	return o.status.subscribe(buffer)
}

// OnStatus registers a callback for every status change. Callbacks run one at
// a time in event order on a separate goroutine and may call Start, Stop or
// Restart.
func (o *Orchestrator) OnStatus(fn domain.StatusObserver) {
	o.status.onStatus(fn)
}

func (o *Orchestrator) launch(ctx context.Context, selected []domain.Profile, toggles domain.Toggles) error {
	runID := uuid.NewString()
	logger := o.logger.With(telemetry.RunIDField(runID))
	started := time.Now()

	ordered := slices.Clone(selected)
	slices.SortStableFunc(ordered, func(a, b domain.Profile) int {
		return a.Category.Priority() - b.Category.Priority()
	})

	logger.Info("start requested",
		telemetry.EventField(telemetry.EventStartRequested),
		zap.Int("profiles", len(ordered)),
		zap.Bool("globalAddressSet", toggles.GlobalAddressSet),
		zap.Bool("gamingAddressSet", toggles.GamingAddressSet),
	)
	o.setState(StateStarting)

	spawned := 0
	for _, profile := range ordered {
		args, ok := o.resolveArguments(logger, profile, toggles)
		if !ok {
			o.metrics.ObserveSpawn(profile.Category, domain.SpawnResultSkipped)
			continue
		}

		if _, err := os.Stat(o.workerPath); err != nil {
			logger.Error("worker executable missing",
				telemetry.ProfileField(profile),
				zap.String("path", o.workerPath),
				zap.Error(err),
			)
			o.finishLaunch(logger, started, spawned)
			return domain.E(domain.CodeFailedPrecond, "orchestrator.start", "", ErrWorkerNotFound(o.workerPath))
		}

		if spawned > 0 {
			sleep(ctx, o.spawnDelay)
		}
		h, err := o.spawn(profile, args, toggles)
		if err != nil {
			logger.Error("worker spawn failed",
				telemetry.EventField(telemetry.EventSpawnFailure),
				telemetry.ProfileField(profile),
				telemetry.CategoryField(profile.Category),
				zap.Error(err),
			)
			o.metrics.ObserveSpawn(profile.Category, domain.SpawnResultFailed)
			continue
		}
		spawned++
		o.metrics.ObserveSpawn(profile.Category, domain.SpawnResultStarted)
		logger.Info("worker started",
			telemetry.EventField(telemetry.EventSpawnSuccess),
			telemetry.ProfileField(profile),
			telemetry.CategoryField(profile.Category),
			telemetry.PIDField(h.pid),
		)
	}

	if spawned > 0 {
		sleep(ctx, o.settleDelay)
	}
	o.finishLaunch(logger, started, spawned)
	return nil
}

// resolveArguments materializes the profile and returns its joined argument
// string. ok is false when there is nothing to run.
func (o *Orchestrator) resolveArguments(logger *zap.Logger, profile domain.Profile, toggles domain.Toggles) (string, bool) {
	path, err := o.materializer.Materialize(profile, toggles)
	if err != nil {
		logger.Warn("materialize failed, using original profile",
			telemetry.ProfileField(profile),
			zap.Error(err),
		)
		path = profile.FilePath
	}
	if path == "" {
		path = profile.FilePath
	}

	content, ok := profiles.ReadContent(path)
	if !ok {
		logger.Warn("profile unreadable, skipping",
			telemetry.EventField(telemetry.EventSpawnSkipped),
			telemetry.ProfileField(profile),
			zap.String("path", path),
		)
		return "", false
	}
	args := profiles.ParseArguments(content)
	if args == "" {
		logger.Debug("profile has no arguments, skipping",
			telemetry.EventField(telemetry.EventSpawnSkipped),
			telemetry.ProfileField(profile),
		)
		return "", false
	}
	return args, true
}

func (o *Orchestrator) finishLaunch(logger *zap.Logger, started time.Time, spawned int) {
	o.mu.Lock()
	live := liveCount(o.handles)
	if live > 0 {
		o.state = StateRunning
	} else {
		o.state = StateIdle
	}
	o.mu.Unlock()

	o.metrics.ObserveStart(time.Since(started), spawned)
	o.metrics.SetActiveWorkers(live)
	logger.Info("start finished",
		telemetry.StateField(string(o.State())),
		zap.Int("spawned", spawned),
		zap.Int("live", live),
		telemetry.DurationField(time.Since(started)),
	)
	o.status.notify(domain.StatusEvent{Running: live > 0, Workers: live, At: time.Now()})
}

func (o *Orchestrator) stop(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	o.mu.Lock()
	handles := o.handles
	o.state = StateStopping
	o.generation++
	o.mu.Unlock()

	for _, h := range handles {
		o.terminate(ctx, h)
	}

	o.mu.Lock()
	o.handles = nil
	o.mu.Unlock()

	o.sweepOrphans(ctx)
	o.materializer.PurgeScratch()

	o.setState(StateIdle)
	o.metrics.SetActiveWorkers(0)
	o.logger.Info("workers stopped",
		telemetry.EventField(telemetry.EventStopSuccess),
		zap.Int("workers", len(handles)),
		telemetry.DurationField(time.Since(started)),
	)
	o.status.notify(domain.StatusEvent{Running: false, At: time.Now()})
}

// sweepOrphans kills every process named after the worker, including ones
// started by earlier runs of this program or by other tools.
func (o *Orchestrator) sweepOrphans(ctx context.Context) int {
	pids, err := o.table.FindByName(ctx, o.workerName)
	if err != nil {
		o.logger.Warn("orphan lookup failed", zap.String("worker", o.workerName), zap.Error(err))
		return 0
	}
	killed := 0
	for _, pid := range pids {
		if err := o.table.KillTree(ctx, pid); err != nil {
			o.logger.Warn("orphan kill failed",
				telemetry.EventField(telemetry.EventStopFailure),
				telemetry.PIDField(int(pid)),
				zap.Error(err),
			)
			continue
		}
		waitCtx, cancel := context.WithTimeout(ctx, o.stopTimeout)
		if err := o.table.WaitExit(waitCtx, pid); err != nil {
			o.logger.Debug("orphan exit wait timed out", telemetry.PIDField(int(pid)), zap.Error(err))
		}
		cancel()
		killed++
		o.logger.Info("orphan worker killed",
			telemetry.EventField(telemetry.EventOrphanKilled),
			telemetry.PIDField(int(pid)),
		)
	}
	o.metrics.ObserveOrphansKilled(killed)
	return killed
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

// ErrWorkerNotFound wraps domain.ErrWorkerNotFound with the probed path.
func ErrWorkerNotFound(path string) error {
	return &workerNotFoundError{path: path}
}

type workerNotFoundError struct {
	path string
}

func (e *workerNotFoundError) Error() string {
	return domain.ErrWorkerNotFound.Error() + ": " + e.path
}

func (e *workerNotFoundError) Unwrap() error {
	return domain.ErrWorkerNotFound
}

func workerFileName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
