// Package metrics holds the Prometheus collectors for the parse pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chronoparse"

type Metrics struct {
	attempts  *prometheus.CounterVec
	fallbacks prometheus.Counter
	latency   *prometheus.HistogramVec
	requests  *prometheus.CounterVec
	duration  prometheus.Histogram
	events    prometheus.Histogram
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_attempts_total",
			Help:      "Completion attempts by strategy, transport and outcome class",
		}, []string{"strategy", "transport", "outcome"}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_fallbacks_total",
			Help:      "Switches from structured to degraded output mode",
		}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_attempt_duration_seconds",
			Help:      "Latency of single completion attempts",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"strategy", "transport"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_requests_total",
			Help:      "Parse requests by result code",
		}, []string{"code"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "End-to-end parse latency",
			Buckets:   prometheus.DefBuckets,
		}),
		events: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_events",
			Help:      "Events returned per successful parse",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		}),
	}
}

func (m *Metrics) ObserveAttempt(strategy, transport, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(strategy, transport, outcome).Inc()
	m.latency.WithLabelValues(strategy, transport).Observe(d.Seconds())
}

func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// ObserveRequest records a finished parse. code is "ok" or an error code.
func (m *Metrics) ObserveRequest(code string, events int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(code).Inc()
	m.duration.Observe(d.Seconds())
	if code == "ok" {
		m.events.Observe(float64(events))
	}
}
