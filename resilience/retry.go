package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/nodecore/resync/backoff"
)

// RetryOptions configures Retry, mirroring sync/retry.Options's
// Attempts/Policy/Valid shape generalized to a backoff.Policy and an
// error-admission predicate.
type RetryOptions struct {
	MaxAttempts int
	Backoff     backoff.Policy
	// ErrorPolicy reports whether err should trigger another attempt. A nil
	// ErrorPolicy retries every error.
	ErrorPolicy func(err error) bool
	OnAttempt   func(attempt int)
	OnDelay     func(attempt int, wait time.Duration)
}

func NewRetryOptions() *RetryOptions {
	return &RetryOptions{
		MaxAttempts: 4,
		Backoff: backoff.Exponential(backoff.ExponentialSettings{
			MinDelay: 100 * time.Millisecond,
			MaxDelay: time.Minute,
			Jitter:   backoff.Jitter(1),
		}),
	}
}

func (o *RetryOptions) Valid() error {
	if o.MaxAttempts < 1 {
		return errors.New("resilience: retry max attempts must be greater than 0")
	}
	if o.Backoff == nil {
		return errors.New("resilience: retry backoff policy must be set")
	}
	return nil
}

type RetryOption func(*RetryOptions)

func WithMaxAttempts(n int) RetryOption {
	return func(o *RetryOptions) { o.MaxAttempts = n }
}

func WithRetryBackoff(p backoff.Policy) RetryOption {
	return func(o *RetryOptions) { o.Backoff = p }
}

func WithErrorPolicy(fn func(error) bool) RetryOption {
	return func(o *RetryOptions) { o.ErrorPolicy = fn }
}

func WithOnAttempt(fn func(attempt int)) RetryOption {
	return func(o *RetryOptions) { o.OnAttempt = fn }
}

func WithOnDelay(fn func(attempt int, wait time.Duration)) RetryOption {
	return func(o *RetryOptions) { o.OnDelay = fn }
}

// Retry wraps op so that a failed attempt is retried, waiting between
// attempts per opts.Backoff, until it succeeds, MaxAttempts is reached, the
// context is cancelled, or ErrorPolicy rejects the error outright.
func Retry[T any](op Invokable[T], opts ...RetryOption) Invokable[T] {
	o := NewRetryOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.Valid(); err != nil {
		panic(err)
	}
	userPolicy := o.ErrorPolicy
	if userPolicy == nil {
		userPolicy = func(error) bool { return true }
	}
	errorPolicy := func(err error) bool {
		var skip *SkipError
		if errors.As(err, &skip) {
			return false
		}
		return userPolicy(err)
	}

	return Func[T](func(ctx context.Context) (T, error) {
		var zero T
		var errs []error

		for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
			if o.OnAttempt != nil {
				o.OnAttempt(attempt)
			}

			v, err := op.Invoke(ctx)
			if err == nil {
				return v, nil
			}

			if cause := context.Cause(ctx); cause != nil {
				return zero, cause
			}

			if !errorPolicy(err) {
				return zero, err
			}

			errs = append(errs, err)
			if attempt == o.MaxAttempts {
				break
			}

			wait := o.Backoff(attempt, err)
			if o.OnDelay != nil {
				o.OnDelay(attempt, wait)
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, context.Cause(ctx)
			case <-timer.C:
			}
		}

		return zero, &RetryResilienceError{Errors: errs, MaxAttempts: o.MaxAttempts}
	})
}
