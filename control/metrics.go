// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the accept loop and the request handler.

package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeOK         = "ok"
	OutcomeMalformed  = "malformed"
	OutcomeOutOfRange = "out_of_range"
	OutcomeError      = "error"
)

// Connection close reasons used as the "reason" label.
const (
	ClosePeer     = "peer"
	CloseError    = "error"
	CloseRejected = "rejected"
	CloseShutdown = "shutdown"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	accepted prometheus.Counter
	closed   *prometheus.CounterVec
	requests *prometheus.CounterVec
	compute  prometheus.Histogram
	active   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		accepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fibserve_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		closed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fibserve_connections_closed_total",
				Help: "Total number of closed client connections by reason",
			},
			[]string{"reason"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fibserve_requests_total",
				Help: "Total number of requests by outcome",
			},
			[]string{"outcome"},
		),
		compute: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fibserve_compute_duration_seconds",
				Help:    "Time spent computing a single response",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
			},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fibserve_active_connection",
				Help: "1 while a connection is being serviced, 0 otherwise",
			},
		),
	}
	reg.MustRegister(m.accepted, m.closed, m.requests, m.compute, m.active)
	return m
}

// ConnectionAccepted records a newly accepted connection and marks it active.
func (m *Metrics) ConnectionAccepted() {
	m.accepted.Inc()
	m.active.Set(1)
}

// ConnectionClosed records a connection leaving the handler loop.
func (m *Metrics) ConnectionClosed(reason string) {
	m.closed.WithLabelValues(reason).Inc()
	m.active.Set(0)
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.compute.Observe(d.Seconds())
	}
}
