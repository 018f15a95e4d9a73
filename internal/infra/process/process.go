package process

import (
	"context"
	"errors"
	"os/exec"
)

// Options controls how a worker process is launched.
type Options struct {
	Dir    string
	Hidden bool
}

// Wait blocks until cmd exits or ctx is done. A process killed by a signal is not
// reported as an error.
func Wait(ctx context.Context, cmd *exec.Cmd) error {
	if cmd == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	if ctx == nil {
		return normalizeExitError(<-done)
	}
	select {
	case err := <-done:
		return normalizeExitError(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func normalizeExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
		return nil
	}
	return err
}

// ExitCode extracts the exit status from a Wait error; -1 when unknown.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
