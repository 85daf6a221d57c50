package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCoordinates is returned when latitude or longitude is out of range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// ErrInvalidDate is returned for dates that are malformed or in the future.
	ErrInvalidDate = errors.New("invalid date")

	// ErrJobNotFound is returned when no job has the requested ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned when an operation needs a job that is not executing.
	ErrJobRunning = errors.New("job is still running")

	// ErrCapabilityUnavailable means the super-resolution package could not be
	// located or loaded at all.
	ErrCapabilityUnavailable = errors.New("super-resolution capability unavailable")
)

// ExecutionError means the capability loaded but the fetch or model run failed.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("super-resolution failed: %v", e.Err)
	}
	return "super-resolution failed: " + e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ClassifyError maps a pipeline error to the ErrorKind stored on a job.
func ClassifyError(err error) ErrorKind {
	var execErr *ExecutionError
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrCapabilityUnavailable):
		return ErrorKindCapabilityUnavailable
	case errors.As(err, &execErr):
		return ErrorKindExecutionFailed
	default:
		return ErrorKindIOFailed
	}
}
