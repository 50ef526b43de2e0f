package logmate

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Line parsing errors. These never escape a job; the chunk driver counts
	// the line as skipped and moves on.
	ErrMalformedLine  = errors.New("malformed log line")
	ErrMissingAddress = errors.New("missing client address")
	ErrShortRequest   = errors.New("request field needs method and path")
	ErrShortStatus    = errors.New("status field needs status and byte count")
	ErrInvalidBytes   = errors.New("invalid byte count")

	// Aggregation errors
	ErrNotDrained = errors.New("aggregate finalized before all lines were processed")
	ErrRegression = errors.New("processed count cannot move backwards")

	// Job errors
	ErrFileNotFound = errors.New("log file not found")
	ErrNoFilePath   = errors.New("file path required")
)

// RetryableError marks a failed attempt that the dispatcher may run again
// from scratch.
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Cause)
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// FatalError marks a failure that retrying cannot fix.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }

// RetryExhaustedError is the terminal failure reported once a job has used
// up its retry budget.
type RetryExhaustedError struct {
	JobID    string
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("job %s failed after %d attempts: %v", e.JobID, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err carries a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// classify wraps an attempt failure. Cancellation of the caller's context is
// the only cause treated as fatal; a deadline from the task time limit is
// retried like any other failure.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return &FatalError{Cause: err}
	}
	return &RetryableError{Cause: err}
}
