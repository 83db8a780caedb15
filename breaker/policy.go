// Package breaker implements a policy-driven circuit breaker: a pure
// Policy[M] describing when metrics of type M cause a state transition,
// an Engine driving that policy over a pluggable StorageAdapter[M], and
// three concrete policies (Consecutive, CountWindow, TimeSampling).
//
// Grounded on sync/circuitbreaker.CircuitBreaker.update, generalized from
// one hardcoded success/failure-count state machine into a pure function
// over caller-supplied metrics so the same engine drives all three variants.
package breaker

import (
	"math"
	"time"
)

// Transition is the outcome of evaluating a Policy's WhenClosed/WhenHalfOpened
// function against the current metrics.
type Transition int

const (
	NoTransition Transition = iota
	ToOpen
	ToClosed
)

// Policy is a pure, side-effect-free description of one circuit breaker
// variant's metrics type and the transition/tracking functions used to
// maintain it. None of Policy's fields read the clock except through the
// now parameter, so policies can be property-tested in isolation.
type Policy[M any] struct {
	InitialMetrics func() M
	WhenClosed     func(m M, now time.Time) Transition
	WhenHalfOpened func(m M, now time.Time) Transition
	TrackFailure   func(status Status, m M, now time.Time) M
	TrackSuccess   func(status Status, m M, now time.Time) M
}

// ConsecutiveMetrics counts consecutive failures/successes since the last
// reset.
type ConsecutiveMetrics struct {
	FailureCount int64
	SuccessCount int64
}

// Consecutive opens after failureThreshold consecutive failures while
// Closed, and requires successThreshold consecutive successes while
// HalfOpen to close again; any failure while HalfOpen reopens immediately.
// successThreshold defaults to failureThreshold when <= 0.
func Consecutive(failureThreshold, successThreshold int64) Policy[ConsecutiveMetrics] {
	if successThreshold <= 0 {
		successThreshold = failureThreshold
	}

	return Policy[ConsecutiveMetrics]{
		InitialMetrics: func() ConsecutiveMetrics { return ConsecutiveMetrics{} },
		WhenClosed: func(m ConsecutiveMetrics, now time.Time) Transition {
			if m.FailureCount >= failureThreshold {
				return ToOpen
			}
			return NoTransition
		},
		WhenHalfOpened: func(m ConsecutiveMetrics, now time.Time) Transition {
			if m.FailureCount > 0 {
				return ToOpen
			}
			if m.SuccessCount >= successThreshold {
				return ToClosed
			}
			return NoTransition
		},
		TrackFailure: func(status Status, m ConsecutiveMetrics, now time.Time) ConsecutiveMetrics {
			m.FailureCount++
			m.SuccessCount = 0
			return m
		},
		TrackSuccess: func(status Status, m ConsecutiveMetrics, now time.Time) ConsecutiveMetrics {
			if status == Closed {
				return ConsecutiveMetrics{}
			}
			m.SuccessCount++
			return m
		},
	}
}

// CountWindowMetrics is a bounded FIFO of outcomes, true meaning success.
type CountWindowMetrics struct {
	Samples []bool
}

// CountWindow opens when the failure ratio over the last size samples
// exceeds failureThreshold (a fraction in [0,1]), once at least
// minimumNumberOfCalls samples have been observed; the HalfOpen condition is
// symmetric over successThreshold.
func CountWindow(size int, failureThreshold, successThreshold float64, minimumNumberOfCalls int) Policy[CountWindowMetrics] {
	push := func(m CountWindowMetrics, ok bool) CountWindowMetrics {
		m.Samples = append(m.Samples, ok)
		if len(m.Samples) > size {
			m.Samples = m.Samples[len(m.Samples)-size:]
		}
		return m
	}
	counts := func(m CountWindowMetrics) (failures, total int) {
		total = len(m.Samples)
		for _, ok := range m.Samples {
			if !ok {
				failures++
			}
		}
		return
	}

	return Policy[CountWindowMetrics]{
		InitialMetrics: func() CountWindowMetrics { return CountWindowMetrics{} },
		WhenClosed: func(m CountWindowMetrics, now time.Time) Transition {
			failures, total := counts(m)
			if total >= minimumNumberOfCalls && float64(failures) > math.Ceil(failureThreshold*float64(total)) {
				return ToOpen
			}
			return NoTransition
		},
		WhenHalfOpened: func(m CountWindowMetrics, now time.Time) Transition {
			failures, total := counts(m)
			if total == 0 {
				return NoTransition
			}
			successes := total - failures
			if float64(successes) > math.Ceil(successThreshold*float64(total)) {
				return ToClosed
			}
			if total >= minimumNumberOfCalls && float64(failures) > math.Ceil(failureThreshold*float64(total)) {
				return ToOpen
			}
			return NoTransition
		},
		TrackFailure: func(status Status, m CountWindowMetrics, now time.Time) CountWindowMetrics {
			return push(m, false)
		},
		TrackSuccess: func(status Status, m CountWindowMetrics, now time.Time) CountWindowMetrics {
			return push(m, true)
		},
	}
}

// TimeSamplingMetrics is an unbounded-by-count, bounded-by-age log of
// timestamped outcomes.
type TimeSamplingMetrics struct {
	Samples []timeSample
}

type timeSample struct {
	At      time.Time
	Success bool
}

// TimeSampling is CountWindow's time-windowed sibling: samples older than
// timeSpan (measured from each sample's end, at+sampleTimeSpan) are pruned
// before every evaluation, and a transition additionally requires at least
// minimumRps calls per second of the window to have been observed.
func TimeSampling(timeSpan, sampleTimeSpan time.Duration, failureThreshold, successThreshold, minimumRps float64) Policy[TimeSamplingMetrics] {
	prune := func(m TimeSamplingMetrics, now time.Time) TimeSamplingMetrics {
		cutoff := now.Add(-timeSpan)
		kept := m.Samples[:0:0]
		for _, s := range m.Samples {
			if s.At.Add(sampleTimeSpan).After(cutoff) {
				kept = append(kept, s)
			}
		}
		m.Samples = kept
		return m
	}
	counts := func(m TimeSamplingMetrics) (failures, total int) {
		total = len(m.Samples)
		for _, s := range m.Samples {
			if !s.Success {
				failures++
			}
		}
		return
	}
	minimumCalls := func() int {
		seconds := math.Ceil(timeSpan.Seconds())
		return int(math.Ceil(minimumRps * seconds))
	}

	return Policy[TimeSamplingMetrics]{
		InitialMetrics: func() TimeSamplingMetrics { return TimeSamplingMetrics{} },
		WhenClosed: func(m TimeSamplingMetrics, now time.Time) Transition {
			m = prune(m, now)
			failures, total := counts(m)
			if total >= minimumCalls() && float64(failures) > math.Ceil(failureThreshold*float64(total)) {
				return ToOpen
			}
			return NoTransition
		},
		WhenHalfOpened: func(m TimeSamplingMetrics, now time.Time) Transition {
			m = prune(m, now)
			failures, total := counts(m)
			if total == 0 || total < minimumCalls() {
				return NoTransition
			}
			successes := total - failures
			if float64(successes) > math.Ceil(successThreshold*float64(total)) {
				return ToClosed
			}
			if total >= minimumCalls() && float64(failures) > math.Ceil(failureThreshold*float64(total)) {
				return ToOpen
			}
			return NoTransition
		},
		TrackFailure: func(status Status, m TimeSamplingMetrics, now time.Time) TimeSamplingMetrics {
			m = prune(m, now)
			m.Samples = append(m.Samples, timeSample{At: now, Success: false})
			return m
		},
		TrackSuccess: func(status Status, m TimeSamplingMetrics, now time.Time) TimeSamplingMetrics {
			m = prune(m, now)
			m.Samples = append(m.Samples, timeSample{At: now, Success: true})
			return m
		},
	}
}
