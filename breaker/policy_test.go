package breaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nodecore/resync/breaker"
)

// TestConsecutive_Monotonicity verifies testable property 6: within Closed,
// the Consecutive policy never opens before failureThreshold consecutive
// failures, and failure counts only grow until a success resets them.
func TestConsecutive_Monotonicity(t *testing.T) {
	policy := breaker.Consecutive(5, 5)
	now := time.Now()

	m := policy.InitialMetrics()
	for i := 1; i <= 4; i++ {
		m = policy.TrackFailure(breaker.Closed, m, now)
		assert.Equal(t, breaker.NoTransition, policy.WhenClosed(m, now), "attempt %d must not open yet", i)
	}

	m = policy.TrackFailure(breaker.Closed, m, now)
	assert.Equal(t, breaker.ToOpen, policy.WhenClosed(m, now))
}

func TestConsecutive_SuccessResetsWhileClosed(t *testing.T) {
	policy := breaker.Consecutive(3, 3)
	now := time.Now()

	m := policy.InitialMetrics()
	m = policy.TrackFailure(breaker.Closed, m, now)
	m = policy.TrackFailure(breaker.Closed, m, now)
	m = policy.TrackSuccess(breaker.Closed, m, now)

	assert.Equal(t, int64(0), m.FailureCount)
	assert.Equal(t, breaker.NoTransition, policy.WhenClosed(m, now))
}

func TestConsecutive_HalfOpenReopensOnAnyFailure(t *testing.T) {
	policy := breaker.Consecutive(5, 5)
	now := time.Now()

	m := policy.InitialMetrics()
	m = policy.TrackFailure(breaker.HalfOpen, m, now)

	assert.Equal(t, breaker.ToOpen, policy.WhenHalfOpened(m, now))
}

func TestConsecutive_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	policy := breaker.Consecutive(5, 3)
	now := time.Now()

	m := policy.InitialMetrics()
	for i := 0; i < 2; i++ {
		m = policy.TrackSuccess(breaker.HalfOpen, m, now)
		assert.Equal(t, breaker.NoTransition, policy.WhenHalfOpened(m, now))
	}
	m = policy.TrackSuccess(breaker.HalfOpen, m, now)
	assert.Equal(t, breaker.ToClosed, policy.WhenHalfOpened(m, now))
}

func TestCountWindow_OpensOverFailureRatio(t *testing.T) {
	policy := breaker.CountWindow(10, 0.5, 0.5, 4)
	now := time.Now()

	m := policy.InitialMetrics()
	for i := 0; i < 3; i++ {
		m = policy.TrackFailure(breaker.Closed, m, now)
	}
	assert.Equal(t, breaker.NoTransition, policy.WhenClosed(m, now), "below minimumNumberOfCalls")

	m = policy.TrackFailure(breaker.Closed, m, now)
	assert.Equal(t, breaker.ToOpen, policy.WhenClosed(m, now))
}

func TestTimeSampling_PrunesOldSamples(t *testing.T) {
	policy := breaker.TimeSampling(time.Minute, time.Second, 0.5, 0.5, 0.1)
	old := time.Now().Add(-time.Hour)

	m := policy.InitialMetrics()
	m = policy.TrackFailure(breaker.Closed, m, old)

	now := time.Now()
	assert.Equal(t, breaker.NoTransition, policy.WhenClosed(m, now), "stale sample must be pruned")
}
