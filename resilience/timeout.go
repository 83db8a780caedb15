package resilience

import (
	"context"
	"errors"
	"time"
)

// errTimeout is the cancellation cause attached to the derived context so
// Timeout can distinguish "this call cancelled it" from an upstream
// cancellation, following dsync/lock.Do's use of context.WithTimeoutCause /
// context.Cause to tell apart a lock's own deadline from the caller's.
var errTimeout = errors.New("resilience: timeout deadline exceeded")

type TimeoutOptions struct {
	WaitTime  time.Duration
	OnTimeout func()
}

func NewTimeoutOptions() *TimeoutOptions {
	return &TimeoutOptions{WaitTime: 2 * time.Second}
}

type TimeoutOption func(*TimeoutOptions)

func WithWaitTime(d time.Duration) TimeoutOption {
	return func(o *TimeoutOptions) { o.WaitTime = d }
}

func WithOnTimeout(fn func()) TimeoutOption {
	return func(o *TimeoutOptions) { o.OnTimeout = fn }
}

// Timeout wraps op so that it is cancelled, and a TimeoutResilienceError
// returned, if it does not complete within WaitTime. A cancellation that
// originates from the parent context is propagated unchanged.
func Timeout[T any](op Invokable[T], opts ...TimeoutOption) Invokable[T] {
	o := NewTimeoutOptions()
	for _, opt := range opts {
		opt(o)
	}

	return Func[T](func(ctx context.Context) (T, error) {
		cctx, cancel := context.WithTimeoutCause(ctx, o.WaitTime, errTimeout)
		defer cancel()

		v, err := op.Invoke(cctx)
		if err == nil {
			return v, nil
		}

		if errors.Is(context.Cause(cctx), errTimeout) && ctx.Err() == nil {
			if o.OnTimeout != nil {
				o.OnTimeout()
			}
			var zero T
			return zero, &TimeoutResilienceError{WaitTime: o.WaitTime}
		}

		return v, err
	})
}
