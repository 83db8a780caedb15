package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/backoff"
	"github.com/nodecore/resync/resilience"
)

var errBoom = errors.New("boom")

// TestRetry_AlwaysFails covers scenario S1: maxAttempts=3, constant 0ms
// backoff, operation always throws -> RetryResilienceError with 3 errors.
func TestRetry_AlwaysFails(t *testing.T) {
	var attempts int
	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		attempts++
		return 0, errBoom
	})

	r := resilience.Retry[int](op,
		resilience.WithMaxAttempts(3),
		resilience.WithRetryBackoff(backoff.Constant(backoff.ConstantSettings{})),
	)

	_, err := r.Invoke(context.Background())
	require.Error(t, err)

	var rerr *resilience.RetryResilienceError
	require.ErrorAs(t, err, &rerr)
	assert.Len(t, rerr.Errors, 3)
	assert.Equal(t, 3, attempts)
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var attempts int
	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errBoom
		}
		return 42, nil
	})

	r := resilience.Retry[int](op,
		resilience.WithMaxAttempts(5),
		resilience.WithRetryBackoff(backoff.Constant(backoff.ConstantSettings{})),
	)

	v, err := r.Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ErrorPolicyRejectsImmediately(t *testing.T) {
	var attempts int
	errFatal := errors.New("fatal")
	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		attempts++
		return 0, errFatal
	})

	r := resilience.Retry[int](op,
		resilience.WithMaxAttempts(5),
		resilience.WithErrorPolicy(func(err error) bool { return !errors.Is(err, errFatal) }),
	)

	_, err := r.Invoke(context.Background())
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, attempts)
}

func TestRetry_SkipStopsImmediately(t *testing.T) {
	var attempts int
	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		attempts++
		return 0, resilience.Skip(errBoom)
	})

	r := resilience.Retry[int](op, resilience.WithMaxAttempts(5))
	_, err := r.Invoke(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		return 0, errBoom
	})

	r := resilience.Retry[int](op, resilience.WithMaxAttempts(5))
	_, err := r.Invoke(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_OnAttemptAndOnDelayObservers(t *testing.T) {
	var attemptsSeen []int
	var delaysSeen []int

	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		return 0, errBoom
	})

	r := resilience.Retry[int](op,
		resilience.WithMaxAttempts(3),
		resilience.WithRetryBackoff(backoff.Constant(backoff.ConstantSettings{Delay: time.Millisecond})),
		resilience.WithOnAttempt(func(attempt int) { attemptsSeen = append(attemptsSeen, attempt) }),
		resilience.WithOnDelay(func(attempt int, wait time.Duration) { delaysSeen = append(delaysSeen, attempt) }),
	)

	_, err := r.Invoke(context.Background())
	require.Error(t, err)
	assert.Equal(t, []int{1, 2, 3}, attemptsSeen)
	assert.Equal(t, []int{1, 2}, delaysSeen)
}
