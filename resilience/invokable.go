// Package resilience implements composable middlewares — retry, timeout,
// bulkhead, hedging and fallback — over a single uniform unit of work,
// Invokable, generalizing internal.QueryHandler / internal.QueryHandlerFunc
// (function and "object with an Exec method" treated the same way) from a
// one-shot command into a reusable, wrappable operation.
package resilience

import "context"

// Invokable is anything that can be run against a context and produce a
// value or an error. A plain function satisfies it via Func; anything else
// implements Invoke directly.
type Invokable[T any] interface {
	Invoke(ctx context.Context) (T, error)
}

// Func adapts a plain function into an Invokable, mirroring
// internal.QueryHandlerFunc.
type Func[T any] func(ctx context.Context) (T, error)

func (f Func[T]) Invoke(ctx context.Context) (T, error) {
	return f(ctx)
}
