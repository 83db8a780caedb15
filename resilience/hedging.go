package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Candidate names one leg of a hedged call: the primary operation plus any
// number of fallbacks, each observable by name via OnAttempt/OnError.
type Candidate[T any] struct {
	Name string
	Op   Invokable[T]
}

// Candidates builds the [primary, fallback-1, fallback-2, ...] list shared
// by both hedging strategies below.
func Candidates[T any](primary Invokable[T], fallbacks ...Invokable[T]) []Candidate[T] {
	cs := make([]Candidate[T], 0, 1+len(fallbacks))
	cs = append(cs, Candidate[T]{Name: "primary", Op: primary})
	for i, fb := range fallbacks {
		cs = append(cs, Candidate[T]{Name: fmt.Sprintf("fallback-%d", i+1), Op: fb})
	}
	return cs
}

type HedgingOptions[T any] struct {
	// ValuePolicy reports whether a successfully-returned value should be
	// treated as a real success. A nil ValuePolicy accepts every value.
	ValuePolicy func(T) bool
	OnAttempt   func(name string)
	OnError     func(name string, err error)
	// WaitTime bounds HedgingParallel only: once elapsed with no winner, the
	// remaining candidates are cancelled and their errors collected.
	WaitTime time.Duration
}

func newHedgingOptions[T any]() *HedgingOptions[T] {
	return &HedgingOptions[T]{WaitTime: 2 * time.Second}
}

type HedgingOption[T any] func(*HedgingOptions[T])

func WithValuePolicy[T any](fn func(T) bool) HedgingOption[T] {
	return func(o *HedgingOptions[T]) { o.ValuePolicy = fn }
}

func WithHedgingOnAttempt[T any](fn func(name string)) HedgingOption[T] {
	return func(o *HedgingOptions[T]) { o.OnAttempt = fn }
}

func WithHedgingOnError[T any](fn func(name string, err error)) HedgingOption[T] {
	return func(o *HedgingOptions[T]) { o.OnError = fn }
}

func WithHedgingWaitTime[T any](d time.Duration) HedgingOption[T] {
	return func(o *HedgingOptions[T]) { o.WaitTime = d }
}

// HedgingSequential tries each candidate in order and returns the first one
// whose value passes ValuePolicy, without ever running two candidates
// concurrently.
func HedgingSequential[T any](candidates []Candidate[T], opts ...HedgingOption[T]) Invokable[T] {
	o := newHedgingOptions[T]()
	for _, opt := range opts {
		opt(o)
	}
	valuePolicy := o.ValuePolicy
	if valuePolicy == nil {
		valuePolicy = func(T) bool { return true }
	}

	return Func[T](func(ctx context.Context) (T, error) {
		var zero T
		if len(candidates) == 0 {
			return zero, ErrNoCandidates
		}

		errs := make(map[string]error, len(candidates))

		for _, c := range candidates {
			if cause := context.Cause(ctx); cause != nil {
				return zero, cause
			}

			if o.OnAttempt != nil {
				o.OnAttempt(c.Name)
			}

			v, err := c.Op.Invoke(ctx)
			if err == nil {
				if valuePolicy(v) {
					return v, nil
				}
				err = ErrValueRejected
			}

			if o.OnError != nil {
				o.OnError(c.Name, err)
			}
			errs[c.Name] = err
		}

		return zero, &HedgingResilienceError{Errors: errs}
	})
}

type hedgeResult[T any] struct {
	name string
	val  T
	err  error
}

// HedgingParallel races every candidate concurrently and returns the first
// value that passes ValuePolicy, cancelling the remaining in-flight
// candidates. If WaitTime elapses, or every candidate fails, before a winner
// is found, it returns HedgingResilienceError with every error observed so
// far.
func HedgingParallel[T any](candidates []Candidate[T], opts ...HedgingOption[T]) Invokable[T] {
	o := newHedgingOptions[T]()
	for _, opt := range opts {
		opt(o)
	}
	valuePolicy := o.ValuePolicy
	if valuePolicy == nil {
		valuePolicy = func(T) bool { return true }
	}

	return Func[T](func(ctx context.Context) (T, error) {
		var zero T
		if len(candidates) == 0 {
			return zero, ErrNoCandidates
		}

		raceCtx, cancel := context.WithTimeout(ctx, o.WaitTime)
		defer cancel()

		results := make(chan hedgeResult[T], len(candidates))
		var wg sync.WaitGroup
		for _, c := range candidates {
			c := c
			wg.Add(1)
			go func() {
				defer wg.Done()
				if o.OnAttempt != nil {
					o.OnAttempt(c.Name)
				}
				v, err := c.Op.Invoke(raceCtx)
				results <- hedgeResult[T]{name: c.Name, val: v, err: err}
			}()
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		errs := make(map[string]error, len(candidates))
		for res := range results {
			if res.err == nil && valuePolicy(res.val) {
				cancel()
				return res.val, nil
			}
			err := res.err
			if err == nil {
				err = ErrValueRejected
			}
			if o.OnError != nil {
				o.OnError(res.name, err)
			}
			errs[res.name] = err
		}

		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			return zero, cause
		}

		return zero, &HedgingResilienceError{Errors: errs}
	})
}
