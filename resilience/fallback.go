package resilience

import "context"

// Fallback wraps op so that, on failure, fallback is invoked with the
// triggering error instead of propagating it.
func Fallback[T any](op Invokable[T], fallback func(ctx context.Context, err error) (T, error)) Invokable[T] {
	return Func[T](func(ctx context.Context) (T, error) {
		v, err := op.Invoke(ctx)
		if err == nil {
			return v, nil
		}
		if cause := context.Cause(ctx); cause != nil {
			var zero T
			return zero, cause
		}
		return fallback(ctx, err)
	})
}
