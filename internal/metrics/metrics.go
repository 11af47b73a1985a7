package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for strategy decisions. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Responses by caller outcome
	DecisionOutcome *prometheus.CounterVec

	// Failed responses by error code
	DecisionErrors *prometheus.CounterVec

	// Latency of a full decide call, including the health gate
	DecideLatency prometheus.Histogram

	// Upstream health as seen by the gate: 0 UP, 1 DEGRADED, 2 DOWN
	UpstreamHealth prometheus.Gauge
}

// New registers the decision metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_strategy_decision_outcomes_total",
			Help: "Total decision responses by caller outcome",
		}, []string{"outcome"}),

		DecisionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_strategy_decision_errors_total",
			Help: "Total failed decision responses by error code",
		}, []string{"code"}),

		DecideLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_strategy_decide_duration_seconds",
			Help:    "Duration of a decide call from request to response",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1},
		}),

		UpstreamHealth: f.NewGauge(prometheus.GaugeOpts{
			Name: "order_strategy_upstream_health_status",
			Help: "Upstream order platform status (0: UP, 1: DEGRADED, 2: DOWN)",
		}),
	}
}

// IncrementOutcome records one response.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementError records one failed response.
func (m *Metrics) IncrementError(code string) {
	if m != nil {
		m.DecisionErrors.WithLabelValues(code).Inc()
	}
}

// ObserveDecideLatency records the duration of one decide call.
func (m *Metrics) ObserveDecideLatency(d time.Duration) {
	if m != nil {
		m.DecideLatency.Observe(d.Seconds())
	}
}

// SetUpstreamHealth records the gate's current status code.
func (m *Metrics) SetUpstreamHealth(status int) {
	if m != nil {
		m.UpstreamHealth.Set(float64(status))
	}
}
