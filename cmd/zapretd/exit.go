package main

import (
	"zapretd/internal/domain"
)

const (
	exitFailure      = 1
	exitUsage        = 2
	exitPrecondition = 3
	exitUnavailable  = 4
)

type exitError struct {
	code    int
	message string
}

func (e exitError) Error() string {
	return e.message
}

func exitWith(code int, message string) error {
	return exitError{code: code, message: message}
}

// exitCodeFor maps domain error codes to process exit codes.
func exitCodeFor(err error) int {
	code, ok := domain.CodeFrom(err)
	if !ok {
		return exitFailure
	}
	switch code {
	case domain.CodeInvalidArgument, domain.CodeNotFound:
		return exitUsage
	case domain.CodeFailedPrecond:
		return exitPrecondition
	case domain.CodeUnavailable:
		return exitUnavailable
	default:
		return exitFailure
	}
}
