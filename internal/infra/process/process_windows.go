//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// Command builds the worker command. Windows programs parse their own command
// line, so the joined argument string is handed over verbatim.
func Command(path string, args string, opts Options) *exec.Cmd {
	cmd := exec.Command(path)
	cmd.Dir = opts.Dir
	attr := &syscall.SysProcAttr{
		CmdLine:       syscall.EscapeArg(path) + " " + args,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
	if opts.Hidden {
		attr.HideWindow = true
		attr.CreationFlags |= windows.CREATE_NO_WINDOW
	} else {
		attr.CreationFlags |= windows.CREATE_NEW_CONSOLE
	}
	cmd.SysProcAttr = attr
	return cmd
}

// KillGroup is not available on windows; callers fall back to a tree walk.
func KillGroup(_ *os.Process) (bool, error) {
	return false, nil
}
