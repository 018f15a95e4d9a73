package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"zapretd/internal/domain"
	"zapretd/internal/infra/process"
	"zapretd/internal/infra/telemetry"
)

// handle tracks one spawned worker. done closes once the process is reaped.
type handle struct {
	profile   domain.Profile
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	done      chan struct{}
	// output tracks the mirror goroutines; the pipes must be drained before Wait.
	output sync.WaitGroup

	mu       sync.Mutex
	exited   bool
	exitCode int
}

func (h *handle) hasExited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

func (h *handle) exitStatus() (bool, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited, h.exitCode
}

func (h *handle) markExited(code int) {
	h.mu.Lock()
	h.exited = true
	h.exitCode = code
	h.mu.Unlock()
	close(h.done)
}

func liveCount(handles []*handle) int {
	live := 0
	for _, h := range handles {
		if !h.hasExited() {
			live++
		}
	}
	return live
}

func (o *Orchestrator) spawn(profile domain.Profile, args string, toggles domain.Toggles) (*handle, error) {
	cmd := process.Command(o.workerPath, args, process.Options{
		Dir:    o.root,
		Hidden: !toggles.ShowWindow,
	})

	// A visible worker owns its console; a hidden one is mirrored into our log.
	var streams map[string]io.Reader
	if !toggles.ShowWindow {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		streams = map[string]io.Reader{"stdout": stdout, "stderr": stderr}
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := &handle{
		profile:   profile,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	for name, reader := range streams {
		h.output.Add(1)
		go func(name string, reader io.Reader) {
			defer h.output.Done()
			mirrorOutput(reader, o.logger.With(
				zap.String(telemetry.FieldLogSource, telemetry.LogSourceWorker),
				zap.String(telemetry.FieldLogStream, name),
				telemetry.ProfileField(profile),
				telemetry.PIDField(h.pid),
			))
		}(name, reader)
	}

	o.mu.Lock()
	o.handles = append(o.handles, h)
	o.mu.Unlock()

	go o.watch(h)
	return h, nil
}

// watch reaps the worker and reports when the last live worker of a running
// set goes away on its own.
func (o *Orchestrator) watch(h *handle) {
	h.output.Wait()
	err := process.Wait(context.Background(), h.cmd)
	h.markExited(process.ExitCode(err))
	o.metrics.ObserveWorkerExit(h.profile.Category)

	o.mu.Lock()
	tracked := false
	for _, candidate := range o.handles {
		if candidate == h {
			tracked = true
			break
		}
	}
	live := liveCount(o.handles)
	lostAll := tracked && live == 0 && o.state == StateRunning
	if lostAll {
		o.state = StateIdle
	}
	generation := o.generation
	o.mu.Unlock()

	o.logger.Info("worker exited",
		telemetry.EventField(telemetry.EventWorkerExit),
		telemetry.ProfileField(h.profile),
		telemetry.PIDField(h.pid),
		zap.Int("exitCode", process.ExitCode(err)),
		telemetry.DurationField(time.Since(h.startedAt)),
	)
	if !tracked {
		return
	}
	o.metrics.SetActiveWorkers(live)
	if lostAll {
		o.status.notifyIf(domain.StatusEvent{Running: false, At: time.Now()}, func() bool {
			o.mu.RLock()
			defer o.mu.RUnlock()
			return o.generation == generation
		})
	}
}

// terminate kills the worker's process tree and waits for it to be reaped.
func (o *Orchestrator) terminate(ctx context.Context, h *handle) {
	if h.hasExited() {
		return
	}
	grouped, err := process.KillGroup(h.cmd.Process)
	if err != nil {
		o.logger.Debug("process group kill failed", telemetry.PIDField(h.pid), zap.Error(err))
	}
	if !grouped || err != nil {
		if err := o.table.KillTree(ctx, int32(h.pid)); err != nil {
			o.logger.Warn("worker kill failed",
				telemetry.EventField(telemetry.EventStopFailure),
				telemetry.ProfileField(h.profile),
				telemetry.PIDField(h.pid),
				zap.Error(err),
			)
		}
	}

	timer := time.NewTimer(o.stopTimeout)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		o.logger.Warn("worker did not exit before timeout",
			telemetry.EventField(telemetry.EventStopFailure),
			telemetry.ProfileField(h.profile),
			telemetry.PIDField(h.pid),
			telemetry.DurationField(o.stopTimeout),
		)
	}
}

const maxOutputLineLength = 32 * 1024

// mirrorOutput logs each line read from reader until EOF. Lines longer than
// maxOutputLineLength are cut and the remainder discarded.
func mirrorOutput(reader io.Reader, logger *zap.Logger) {
	buf := bufio.NewReaderSize(reader, maxOutputLineLength)
	for {
		line, isPrefix, err := buf.ReadLine()
		if len(line) > 0 {
			text := strings.TrimRight(string(line), "\r\n")
			if isPrefix {
				text += "... [truncated]"
			}
			if text != "" {
				logger.Info(text)
			}
			for isPrefix && err == nil {
				_, isPrefix, err = buf.ReadLine()
			}
		}
		if err != nil {
			return
		}
	}
}
