package breaker

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector observes breaker transitions and call outcomes, mirroring
// dsync/lock.MetricsCollector's atomic-default / Prometheus-optional shape.
type MetricsCollector interface {
	IncRequests()
	IncFailures()
	IncRejected()
	IncTransitions()
}

// AtomicMetrics is a lock-free, in-process MetricsCollector.
type AtomicMetrics struct {
	requests    int64
	failures    int64
	rejected    int64
	transitions int64
}

func (m *AtomicMetrics) IncRequests()    { atomic.AddInt64(&m.requests, 1) }
func (m *AtomicMetrics) IncFailures()    { atomic.AddInt64(&m.failures, 1) }
func (m *AtomicMetrics) IncRejected()    { atomic.AddInt64(&m.rejected, 1) }
func (m *AtomicMetrics) IncTransitions() { atomic.AddInt64(&m.transitions, 1) }

func (m *AtomicMetrics) Requests() int64    { return atomic.LoadInt64(&m.requests) }
func (m *AtomicMetrics) Failures() int64    { return atomic.LoadInt64(&m.failures) }
func (m *AtomicMetrics) Rejected() int64    { return atomic.LoadInt64(&m.rejected) }
func (m *AtomicMetrics) Transitions() int64 { return atomic.LoadInt64(&m.transitions) }

// PrometheusMetrics implements MetricsCollector using prometheus counters.
type PrometheusMetrics struct {
	Requests    prometheus.Counter
	Failures    prometheus.Counter
	Rejected    prometheus.Counter
	Transitions prometheus.Counter
}

func (m *PrometheusMetrics) IncRequests()    { m.Requests.Inc() }
func (m *PrometheusMetrics) IncFailures()    { m.Failures.Inc() }
func (m *PrometheusMetrics) IncRejected()    { m.Rejected.Inc() }
func (m *PrometheusMetrics) IncTransitions() { m.Transitions.Inc() }
