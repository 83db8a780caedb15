package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// Limiter is the shared configuration behind Bulkhead: a fixed pool of
// maxConcurrency worker slots plus an optional bound on how many callers may
// be queued waiting for one. Several Bulkhead-wrapped Invokables may share
// one Limiter to bound their combined concurrency.
type Limiter struct {
	sem         chan struct{}
	maxCapacity int // negative means unbounded
	queued      int64
	interval    time.Duration
	onProcessing func()
}

type LimiterOptions struct {
	MaxConcurrency int
	// MaxCapacity bounds the total number of callers in the system at once
	// (running + waiting for a slot), not just the waiting queue. <0 means
	// unbounded. It must be >= 1 to admit any caller at all.
	MaxCapacity  int
	Interval     time.Duration
	OnProcessing func()
}

func NewLimiterOptions() *LimiterOptions {
	return &LimiterOptions{
		MaxConcurrency: 1,
		MaxCapacity:    -1,
	}
}

type LimiterOption func(*LimiterOptions)

func WithMaxConcurrency(n int) LimiterOption {
	return func(o *LimiterOptions) { o.MaxConcurrency = n }
}

func WithMaxCapacity(n int) LimiterOption {
	return func(o *LimiterOptions) { o.MaxCapacity = n }
}

func WithInterval(d time.Duration) LimiterOption {
	return func(o *LimiterOptions) { o.Interval = d }
}

func WithOnProcessing(fn func()) LimiterOption {
	return func(o *LimiterOptions) { o.OnProcessing = fn }
}

// NewLimiter constructs a Limiter ready to guard one or more Bulkhead calls.
func NewLimiter(opts ...LimiterOption) *Limiter {
	o := NewLimiterOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.MaxConcurrency < 1 {
		o.MaxConcurrency = 1
	}

	return &Limiter{
		sem:          make(chan struct{}, o.MaxConcurrency),
		maxCapacity:  o.MaxCapacity,
		interval:     o.Interval,
		onProcessing: o.OnProcessing,
	}
}

// Bulkhead wraps op so that no more than l's maxConcurrency invocations run
// at once. Callers beyond l's maxCapacity are rejected immediately with
// CapacityFullResilienceError instead of queueing indefinitely.
func Bulkhead[T any](l *Limiter, op Invokable[T]) Invokable[T] {
	return Func[T](func(ctx context.Context) (T, error) {
		var zero T

		if l.maxCapacity >= 0 {
			n := atomic.AddInt64(&l.queued, 1)
			if n > int64(l.maxCapacity) {
				atomic.AddInt64(&l.queued, -1)
				return zero, &CapacityFullResilienceError{MaxCapacity: l.maxCapacity}
			}
		} else {
			atomic.AddInt64(&l.queued, 1)
		}
		defer atomic.AddInt64(&l.queued, -1)

		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return zero, context.Cause(ctx)
		}
		defer func() { <-l.sem }()

		if l.onProcessing != nil {
			l.onProcessing()
		}

		v, err := op.Invoke(ctx)

		if l.interval > 0 {
			timer := time.NewTimer(l.interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}

		return v, err
	})
}
