//go:build !windows

package process

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Command builds the worker command. The joined argument string is tokenized
// because exec on unix takes an argv vector.
func Command(path string, args string, opts Options) *exec.Cmd {
	cmd := exec.Command(path, SplitArguments(args)...)
	cmd.Dir = opts.Dir
	cmd.SysProcAttr = sysProcAttr()
	return cmd
}

// KillGroup kills the process group led by proc. It reports whether the group
// kill was attempted so callers know a tree walk is unnecessary.
func KillGroup(proc *os.Process) (bool, error) {
	if proc == nil {
		return true, nil
	}
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return true, err
	}
	return true, nil
}
