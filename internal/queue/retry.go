package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/subject-research/internal/config"
)

// RetryPolicy decides how many times a stage may run for the same unit of work.
// A stage that fails with attempts remaining returns a *RetryError instead of
// recording a failure status.
type RetryPolicy struct {
	// MaxAttempts overrides DefaultMaxAttempts per stage.
	MaxAttempts        map[Stage]int
	DefaultMaxAttempts int
	Backoff            time.Duration
}

// NoRetry runs every stage exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{DefaultMaxAttempts: 1}
}

// PolicyFromConfig builds the policy described by the worker configuration.
func PolicyFromConfig(cfg config.WorkerConfig) RetryPolicy {
	return RetryPolicy{
		DefaultMaxAttempts: cfg.MaxAttempts,
		Backoff:            time.Duration(cfg.RetryBackoffSeconds) * time.Second,
	}
}

// Attempts returns the maximum number of runs for stage.
func (p RetryPolicy) Attempts(stage Stage) int {
	if n, ok := p.MaxAttempts[stage]; ok && n > 0 {
		return n
	}
	if p.DefaultMaxAttempts > 0 {
		return p.DefaultMaxAttempts
	}
	return 1
}

// ShouldRetry reports whether task may run again after failing.
// Attempt counts from zero.
func (p RetryPolicy) ShouldRetry(task Task) bool {
	return task.Attempt+1 < p.Attempts(task.Stage)
}

// Retry wraps err so the worker pool re-enqueues the task.
func (p RetryPolicy) Retry(err error) error {
	return &RetryError{Err: err, After: p.Backoff}
}

// RetryError asks the pool to run the task again after a delay.
type RetryError struct {
	Err   error
	After time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry after %s: %v", e.After, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// AsRetry returns the *RetryError in err's chain, if any.
func AsRetry(err error) (*RetryError, bool) {
	var re *RetryError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
