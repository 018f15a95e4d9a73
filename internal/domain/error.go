package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures for callers and CLI exit codes.
type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond   ErrorCode = "FAILED_PRECONDITION"
	CodeInternal        ErrorCode = "INTERNAL"
)

var (
	ErrWorkerNotFound     = errors.New("worker binary not found")
	ErrAlreadyRunning     = errors.New("another instance is already running")
	ErrNoProfilesSelected = errors.New("no profiles selected")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrSettingsClosed     = errors.New("settings store is closed")
	ErrConflictsDetected  = errors.New("conflicting processes detected")
)

// Error carries a code and the operation that failed, e.g. "orchestrator.start".
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
		}
	}
	return E(code, op, "", err)
}

// CodeFrom reports the code attached to err, falling back to the sentinel classification.
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrUnknownCategory), errors.Is(err, ErrNoProfilesSelected):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrProfileNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrWorkerNotFound), errors.Is(err, ErrConflictsDetected):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrSettingsClosed):
		return CodeUnavailable, true
	default:
		return "", false
	}
}
