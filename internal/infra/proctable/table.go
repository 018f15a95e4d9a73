// Package proctable queries and manipulates the OS process table by name.
package proctable

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const defaultPollInterval = 50 * time.Millisecond

// Table is the process-table primitive the orchestrator and conflict detector need.
type Table interface {
	// FindByName returns the pids of processes whose executable name matches name.
	FindByName(ctx context.Context, name string) ([]int32, error)
	// KillTree forcibly terminates pid and every descendant.
	KillTree(ctx context.Context, pid int32) error
	// WaitExit blocks until pid is gone or ctx is done.
	WaitExit(ctx context.Context, pid int32) error
}

// System is the gopsutil-backed Table.
type System struct {
	self         int32
	pollInterval time.Duration
}

func NewSystem() *System {
	return &System{
		self:         int32(os.Getpid()),
		pollInterval: defaultPollInterval,
	}
}

func (s *System) FindByName(ctx context.Context, name string) ([]int32, error) {
	target := normalizeName(name)
	if target == "" {
		return nil, errors.New("process name is required")
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var pids []int32
	for _, proc := range procs {
		if proc.Pid == s.self {
			continue
		}
		procName, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if normalizeName(procName) == target {
			pids = append(pids, proc.Pid)
		}
	}
	return pids, nil
}

func (s *System) KillTree(ctx context.Context, pid int32) error {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}
	return killTree(ctx, proc)
}

func killTree(ctx context.Context, proc *process.Process) error {
	children, err := proc.ChildrenWithContext(ctx)
	if err == nil {
		for _, child := range children {
			_ = killTree(ctx, child)
		}
	}
	if err := proc.KillWithContext(ctx); err != nil {
		if running, runErr := proc.IsRunningWithContext(ctx); runErr == nil && !running {
			return nil
		}
		return err
	}
	return nil
}

func (s *System) WaitExit(ctx context.Context, pid int32) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		if gone(ctx, pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// gone treats zombies as exited; their parent reaps them, not us.
func gone(ctx context.Context, pid int32) bool {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !exists {
		return true
	}
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return true
	}
	status, err := proc.StatusWithContext(ctx)
	if err != nil {
		return false
	}
	for _, st := range status {
		if st == process.Zombie {
			return true
		}
	}
	return false
}

// normalizeName lowercases and strips a trailing .exe so "winws.exe" matches "winws".
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

var _ Table = (*System)(nil)
