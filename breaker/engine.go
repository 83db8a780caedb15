package breaker

import (
	"context"
	"time"

	"github.com/nodecore/resync/backoff"
)

// Engine drives a Policy[M] over a StorageAdapter[M], exposing the
// CircuitBreakerAdapter runtime surface of spec.md §4.6.4: getState,
// updateState, trackFailure/trackSuccess, reset, isolate, and a RunOrFail
// helper that composes updateState with the wrapped call, grounded on
// sync/circuitbreaker.CircuitBreaker.Exec/ExecFunc generalized off of one
// hardcoded state machine.
type Engine[M any] struct {
	policy  Policy[M]
	adapter StorageAdapter[M]
	backoff backoff.Policy
	now     func() time.Time
	metrics MetricsCollector
}

type EngineOption[M any] func(*Engine[M])

func WithEngineBackoff[M any](p backoff.Policy) EngineOption[M] {
	return func(e *Engine[M]) { e.backoff = p }
}

func WithEngineClock[M any](now func() time.Time) EngineOption[M] {
	return func(e *Engine[M]) { e.now = now }
}

func WithEngineMetrics[M any](m MetricsCollector) EngineOption[M] {
	return func(e *Engine[M]) { e.metrics = m }
}

func NewEngine[M any](policy Policy[M], adapter StorageAdapter[M], opts ...EngineOption[M]) *Engine[M] {
	e := &Engine[M]{
		policy:  policy,
		adapter: adapter,
		backoff: backoff.Exponential(backoff.ExponentialSettings{MinDelay: time.Second, MaxDelay: time.Minute}),
		now:     time.Now,
		metrics: &AtomicMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetState returns key's current status without advancing its state.
func (e *Engine[M]) GetState(ctx context.Context, key string) (Status, error) {
	r, ok, err := e.adapter.Find(ctx, key)
	if err != nil {
		return Closed, err
	}
	if !ok {
		return Closed, nil
	}
	return r.Status, nil
}

// UpdateState advances key's record by one tick and reports the transition.
func (e *Engine[M]) UpdateState(ctx context.Context, key string) (from, to Status, err error) {
	_, txErr := e.adapter.Transaction(ctx, key, func(current Record[M], ok bool) (Record[M], error) {
		if !ok {
			current = Record[M]{Status: Closed, Metrics: e.policy.InitialMetrics()}
		}
		from = current.Status
		next := updateState(e.policy, current, e.now(), e.backoff)
		to = next.Status
		return next, nil
	})
	if txErr != nil {
		return from, from, txErr
	}
	if from != to {
		e.metrics.IncTransitions()
	}
	return from, to, nil
}

// TrackFailure records a failed call against key and immediately
// re-evaluates the Closed/HalfOpen transition against the updated metrics.
func (e *Engine[M]) TrackFailure(ctx context.Context, key string) (from, to Status, err error) {
	return e.observe(ctx, key, false)
}

// TrackSuccess is TrackFailure's successful-call counterpart.
func (e *Engine[M]) TrackSuccess(ctx context.Context, key string) (from, to Status, err error) {
	return e.observe(ctx, key, true)
}

func (e *Engine[M]) observe(ctx context.Context, key string, success bool) (from, to Status, err error) {
	_, txErr := e.adapter.Transaction(ctx, key, func(current Record[M], ok bool) (Record[M], error) {
		if !ok {
			current = Record[M]{Status: Closed, Metrics: e.policy.InitialMetrics()}
		}
		from = current.Status
		next := observe(e.policy, current, e.now(), e.backoff, success)
		to = next.Status
		return next, nil
	})
	if txErr != nil {
		return from, from, txErr
	}
	if from != to {
		e.metrics.IncTransitions()
	}
	return from, to, nil
}

// allow applies the clock-driven Open -> HalfOpen check and reports the
// resulting status, so a caller can decide whether to run its call at all.
func (e *Engine[M]) allow(ctx context.Context, key string) (Status, error) {
	r, err := e.adapter.Transaction(ctx, key, func(current Record[M], ok bool) (Record[M], error) {
		if !ok {
			current = Record[M]{Status: Closed, Metrics: e.policy.InitialMetrics()}
		}
		return updateState(e.policy, current, e.now(), e.backoff), nil
	})
	if err != nil {
		return Closed, err
	}
	return r.Status, nil
}

// Reset removes key's record entirely, returning it to a fresh Closed state
// on next use.
func (e *Engine[M]) Reset(ctx context.Context, key string) error {
	return e.adapter.Remove(ctx, key)
}

// Isolate forces key into the Isolated status until Reset.
func (e *Engine[M]) Isolate(ctx context.Context, key string) error {
	_, err := e.adapter.Transaction(ctx, key, func(current Record[M], ok bool) (Record[M], error) {
		return Record[M]{Status: Isolated}, nil
	})
	return err
}

// RunOrFail checks key's status, rejects immediately if it is Open or
// Isolated, otherwise invokes fn and feeds its outcome back into TrackSuccess
// or TrackFailure.
func RunOrFail[M, T any](ctx context.Context, e *Engine[M], key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	e.metrics.IncRequests()

	status, err := e.allow(ctx, key)
	if err != nil {
		return zero, err
	}

	switch status {
	case Open:
		e.metrics.IncRejected()
		return zero, &OpenCircuitBreakerError{Key: key}
	case Isolated:
		e.metrics.IncRejected()
		return zero, &IsolatedCircuitBreakerError{Key: key}
	}

	v, callErr := fn(ctx)
	if callErr != nil {
		e.metrics.IncFailures()
	}

	if _, _, trackErr := e.observe(ctx, key, callErr == nil); trackErr != nil {
		return zero, trackErr
	}
	return v, callErr
}
