package resilience

import (
	"errors"
	"fmt"
	"time"
)

// SkipError marks an error as non-retryable regardless of the configured
// ErrorPolicy, mirroring sync/retry.SkipError.
type SkipError struct {
	err error
}

// Skip wraps err so that Retry stops immediately instead of consuming the
// remaining attempts.
func Skip(err error) error {
	return &SkipError{err: err}
}

func (e *SkipError) Error() string {
	return e.err.Error()
}

func (e *SkipError) Unwrap() error {
	return e.err
}

// ErrCapacityFull is returned by Bulkhead when the queue is at maxCapacity.
var ErrCapacityFull = errors.New("resilience: bulkhead capacity full")

// ErrNoCandidates is returned by the hedging middlewares when called with an
// empty candidate list.
var ErrNoCandidates = errors.New("resilience: hedging has no candidates")

// ErrValueRejected is the error substituted for a hedging candidate whose
// returned value was rejected by a ValuePolicy despite a nil error.
var ErrValueRejected = errors.New("resilience: candidate value rejected")

// RetryResilienceError wraps every error observed across a retry's attempts.
type RetryResilienceError struct {
	Errors      []error
	MaxAttempts int
}

func (e *RetryResilienceError) Error() string {
	return fmt.Sprintf("resilience: retry exhausted after %d attempts: %v", e.MaxAttempts, e.Errors)
}

// Unwrap exposes the final attempt's error to errors.Is/errors.As.
func (e *RetryResilienceError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// TimeoutResilienceError is returned when an operation did not complete
// within the configured wait time.
type TimeoutResilienceError struct {
	WaitTime time.Duration
}

func (e *TimeoutResilienceError) Error() string {
	return fmt.Sprintf("resilience: timed out after %s", e.WaitTime)
}

// HedgingResilienceError wraps every candidate's error, keyed by name, when
// none of them succeeded.
type HedgingResilienceError struct {
	Errors map[string]error
}

func (e *HedgingResilienceError) Error() string {
	return fmt.Sprintf("resilience: all %d hedging candidates failed: %v", len(e.Errors), e.Errors)
}

// CapacityFullResilienceError is the typed form of ErrCapacityFull, carrying
// the limiter's configured bound.
type CapacityFullResilienceError struct {
	MaxCapacity int
}

func (e *CapacityFullResilienceError) Error() string {
	return fmt.Sprintf("resilience: bulkhead capacity full (max %d)", e.MaxCapacity)
}

func (e *CapacityFullResilienceError) Unwrap() error {
	return ErrCapacityFull
}
