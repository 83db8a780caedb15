package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/resilience"
)

// TestHedgingSequential_FallsThroughToWinner covers scenario S7: primary and
// fallback-1 fail, fallback-2 succeeds; only candidates up to and including
// the winner are attempted.
func TestHedgingSequential_FallsThroughToWinner(t *testing.T) {
	primary := resilience.Func[string](func(ctx context.Context) (string, error) {
		return "", errBoom
	})
	fallback1 := resilience.Func[string](func(ctx context.Context) (string, error) {
		return "", errBoom
	})
	fallback2 := resilience.Func[string](func(ctx context.Context) (string, error) {
		return "winner", nil
	})

	var attempts []string
	errs := map[string]error{}

	h := resilience.HedgingSequential[string](
		resilience.Candidates[string](primary, fallback1, fallback2),
		resilience.WithHedgingOnAttempt[string](func(name string) { attempts = append(attempts, name) }),
		resilience.WithHedgingOnError[string](func(name string, err error) { errs[name] = err }),
	)

	v, err := h.Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "winner", v)
	assert.Equal(t, []string{"primary", "fallback-1", "fallback-2"}, attempts)
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, "primary")
	assert.Contains(t, errs, "fallback-1")
}

func TestHedgingSequential_AllFail(t *testing.T) {
	fail := resilience.Func[int](func(ctx context.Context) (int, error) { return 0, errBoom })

	h := resilience.HedgingSequential[int](resilience.Candidates[int](fail, fail))
	_, err := h.Invoke(context.Background())

	var herr *resilience.HedgingResilienceError
	require.ErrorAs(t, err, &herr)
	assert.Len(t, herr.Errors, 2)
}

func TestHedgingParallel_FirstSuccessWinsAndCancelsOthers(t *testing.T) {
	slow := resilience.Func[string](func(ctx context.Context) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "slow", nil
		case <-ctx.Done():
			return "", context.Cause(ctx)
		}
	})
	fast := resilience.Func[string](func(ctx context.Context) (string, error) {
		return "fast", nil
	})

	h := resilience.HedgingParallel[string](
		resilience.Candidates[string](slow, fast),
		resilience.WithHedgingWaitTime[string](time.Second),
	)

	v, err := h.Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestHedgingParallel_WaitTimeExceeded(t *testing.T) {
	slow := resilience.Func[string](func(ctx context.Context) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "slow", nil
		case <-ctx.Done():
			return "", context.Cause(ctx)
		}
	})

	h := resilience.HedgingParallel[string](
		resilience.Candidates[string](slow),
		resilience.WithHedgingWaitTime[string](10*time.Millisecond),
	)

	_, err := h.Invoke(context.Background())
	require.Error(t, err)
}
