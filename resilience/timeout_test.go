package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecore/resync/resilience"
)

// TestTimeout_Exceeded covers scenario S2: a 200ms sleeping operation under
// a 50ms timeout fails with TimeoutResilienceError.
func TestTimeout_Exceeded(t *testing.T) {
	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return 1, nil
		case <-ctx.Done():
			return 0, context.Cause(ctx)
		}
	})

	var timedOut bool
	to := resilience.Timeout[int](op,
		resilience.WithWaitTime(50*time.Millisecond),
		resilience.WithOnTimeout(func() { timedOut = true }),
	)

	_, err := to.Invoke(context.Background())
	require.Error(t, err)

	var terr *resilience.TimeoutResilienceError
	require.ErrorAs(t, err, &terr)
	assert.True(t, timedOut)
}

func TestTimeout_CompletesInTime(t *testing.T) {
	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		return 7, nil
	})

	to := resilience.Timeout[int](op, resilience.WithWaitTime(time.Second))
	v, err := to.Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestTimeout_PropagatesParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	op := resilience.Func[int](func(ctx context.Context) (int, error) {
		cancel()
		<-ctx.Done()
		return 0, context.Cause(ctx)
	})

	to := resilience.Timeout[int](op, resilience.WithWaitTime(time.Second))
	_, err := to.Invoke(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
