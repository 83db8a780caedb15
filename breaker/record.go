package breaker

import (
	"time"

	"github.com/nodecore/resync/backoff"
)

// Record is the full persisted state of one breaker key: the status plus
// enough bookkeeping (reopen deadline, attempt count) to drive the backoff
// between successive Open windows.
type Record[M any] struct {
	Status   Status
	Metrics  M
	OpenedAt time.Time
	Attempt  int
	ReopenAt time.Time
}

// updateState advances current by one tick of the clock per spec.md §4.6.3:
// Closed opens on policy.WhenClosed; Open moves to HalfOpen once the reopen
// deadline has passed; HalfOpen moves to Closed or back to Open per
// policy.WhenHalfOpened; Isolated never changes on its own.
func updateState[M any](policy Policy[M], current Record[M], now time.Time, bo backoff.Policy) Record[M] {
	switch current.Status {
	case Closed:
		if policy.WhenClosed(current.Metrics, now) == ToOpen {
			return Record[M]{
				Status:   Open,
				Metrics:  current.Metrics,
				OpenedAt: now,
				Attempt:  1,
				ReopenAt: now.Add(bo(1, nil)),
			}
		}
		return current

	case Open:
		if !now.Before(current.ReopenAt) {
			return Record[M]{
				Status:  HalfOpen,
				Metrics: policy.InitialMetrics(),
				Attempt: current.Attempt,
			}
		}
		return current

	case HalfOpen:
		switch policy.WhenHalfOpened(current.Metrics, now) {
		case ToClosed:
			return Record[M]{Status: Closed, Metrics: policy.InitialMetrics()}
		case ToOpen:
			attempt := current.Attempt + 1
			return Record[M]{
				Status:   Open,
				Metrics:  current.Metrics,
				OpenedAt: now,
				Attempt:  attempt,
				ReopenAt: now.Add(bo(attempt, nil)),
			}
		default:
			return current
		}

	default: // Isolated
		return current
	}
}

// trackFailure/trackSuccess mutate metrics only while Closed/HalfOpen;
// Open/Isolated records pass through unchanged, matching spec.md §4.6.3.
func trackFailure[M any](policy Policy[M], current Record[M], now time.Time) Record[M] {
	if current.Status != Closed && current.Status != HalfOpen {
		return current
	}
	current.Metrics = policy.TrackFailure(current.Status, current.Metrics, now)
	return current
}

func trackSuccess[M any](policy Policy[M], current Record[M], now time.Time) Record[M] {
	if current.Status != Closed && current.Status != HalfOpen {
		return current
	}
	current.Metrics = policy.TrackSuccess(current.Status, current.Metrics, now)
	return current
}

// observe folds a tracked outcome and its transition evaluation into one
// step, matching sync/circuitbreaker.CircuitBreaker.update's single update(ok)
// call rather than spec.md §4.6.3/§4.6.4's separate trackFailure/updateState
// operations.
func observe[M any](policy Policy[M], current Record[M], now time.Time, bo backoff.Policy, success bool) Record[M] {
	if success {
		current = trackSuccess(policy, current, now)
	} else {
		current = trackFailure(policy, current, now)
	}
	return updateState(policy, current, now, bo)
}
