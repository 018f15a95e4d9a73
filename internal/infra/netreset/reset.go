package netreset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"zapretd/internal/infra/process"
)

const defaultCommandTimeout = 30 * time.Second

// ProxyVariables are removed from the process and user environment.
var ProxyVariables = []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY"}

// Runner executes an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands hidden, bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	line := strings.Join(args, " ")
	cmd := process.Command(name, line, process.Options{Hidden: true})
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := process.Wait(waitCtx, cmd); err != nil {
		if waitCtx.Err() != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return fmt.Errorf("%s %s: %w", name, line, err)
	}
	return nil
}

// StepResult is the outcome of one reset step.
type StepResult struct {
	Name    string
	Message string
	Skipped bool
	Err     error
}

// Report lists every step in execution order.
type Report struct {
	Steps []StepResult
}

// Err joins the failures of all steps, nil when every step succeeded.
func (r Report) Err() error {
	var errs []error
	for _, step := range r.Steps {
		if step.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, step.Err))
		}
	}
	return errors.Join(errs...)
}

type Options struct {
	Runner Runner
	Logger *zap.Logger
	// GOOS selects the step set; defaults to runtime.GOOS.
	GOOS string
}

// Resetter restores proxy, socket and DNS state that tunnelling tools tend to
// leave behind.
type Resetter struct {
	runner Runner
	logger *zap.Logger
	goos   string

	resetProxy   func() error
	clearUserEnv func(names []string) error
	unsetEnv     func(name string) error
}

func New(opts Options) *Resetter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	return &Resetter{
		runner:       runner,
		logger:       logger.Named("netreset"),
		goos:         goos,
		resetProxy:   resetProxySettings,
		clearUserEnv: removeUserEnvironment,
		unsetEnv:     os.Unsetenv,
	}
}

type step struct {
	name        string
	message     string
	windowsOnly bool
	run         func(ctx context.Context) error
}

func (r *Resetter) steps() []step {
	dns := func(ctx context.Context) error {
		return r.runner.Run(ctx, "resolvectl", "flush-caches")
	}
	if r.goos == "windows" {
		dns = func(ctx context.Context) error {
			return r.runner.Run(ctx, "ipconfig", "/flushdns")
		}
	}
	return []step{
		{
			name:    "proxy-settings",
			message: "Resetting proxy settings...",
			run: func(context.Context) error {
				return r.resetProxy()
			},
		},
		{
			name:        "winhttp-proxy",
			message:     "Resetting WinHTTP proxy...",
			windowsOnly: true,
			run: func(ctx context.Context) error {
				return r.runner.Run(ctx, "netsh", "winhttp", "reset", "proxy")
			},
		},
		{
			name:    "proxy-environment",
			message: "Removing proxy environment variables...",
			run:     r.removeProxyVariables,
		},
		{
			name:        "winsock",
			message:     "Resetting Winsock...",
			windowsOnly: true,
			run: func(ctx context.Context) error {
				return r.runner.Run(ctx, "netsh", "winsock", "reset")
			},
		},
		{
			name:    "dns-cache",
			message: "Flushing DNS cache...",
			run:     dns,
		},
	}
}

// Reset runs every step in order. A failing step is recorded and the sequence
// continues.
func (r *Resetter) Reset(ctx context.Context, progress func(string)) Report {
	if progress == nil {
		progress = func(string) {}
	}
	var report Report
	for _, s := range r.steps() {
		result := StepResult{Name: s.name, Message: s.message}
		if s.windowsOnly && r.goos != "windows" {
			result.Skipped = true
			report.Steps = append(report.Steps, result)
			continue
		}
		progress(s.message)
		if err := s.run(ctx); err != nil {
			result.Err = err
			r.logger.Warn("network reset step failed", zap.String("step", s.name), zap.Error(err))
		} else {
			r.logger.Debug("network reset step done", zap.String("step", s.name))
		}
		report.Steps = append(report.Steps, result)
	}
	progress("Network settings reset.")
	return report
}

func (r *Resetter) removeProxyVariables(context.Context) error {
	names := proxyVariableNames()
	var errs []error
	for _, name := range names {
		if err := r.unsetEnv(name); err != nil {
			errs = append(errs, fmt.Errorf("unset %s: %w", name, err))
		}
	}
	if err := r.clearUserEnv(names); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func proxyVariableNames() []string {
	names := make([]string, 0, len(ProxyVariables)*2)
	for _, name := range ProxyVariables {
		names = append(names, name, strings.ToLower(name))
	}
	return names
}
