// Package metrics provides Prometheus-based instrumentation for debate
// sessions and a query service for aggregating recorded series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"refinery/pkg/debate"
)

// PrometheusRecorder exposes debate engine activity as Prometheus metrics.
// It satisfies both the engine observer and the capability call observer.
type PrometheusRecorder struct {
	capabilityCalls    *prometheus.CounterVec
	capabilityDuration *prometheus.HistogramVec
	outcomesTotal      *prometheus.CounterVec
	overridesTotal     *prometheus.CounterVec
	roundConfidence    prometheus.Histogram
	roundViolations    prometheus.Histogram
	sessionRounds      *prometheus.HistogramVec
	sessionSteps       *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the debate metric families on the default
// registry. Create at most one per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		capabilityCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debate_capability_calls_total",
				Help: "Total capability invocations by kind and status",
			},
			[]string{"kind", "status"},
		),
		capabilityDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "debate_capability_duration_seconds",
				Help:    "Duration of capability invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debate_session_outcomes_total",
				Help: "Total terminated sessions by outcome kind",
			},
			[]string{"kind"},
		),
		overridesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debate_router_overrides_total",
				Help: "Total supervisor proposals overridden by the router, by routed action",
			},
			[]string{"action"},
		),
		roundConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "debate_round_confidence",
				Help:    "Validation confidence per completed round",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		roundViolations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "debate_round_violations",
				Help:    "Outstanding violations per completed round",
				Buckets: prometheus.LinearBuckets(0, 1, 11),
			},
		),
		sessionRounds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "debate_session_rounds",
				Help:    "Completed rounds per terminated session",
				Buckets: prometheus.LinearBuckets(0, 1, 11),
			},
			[]string{"kind"},
		),
		sessionSteps: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "debate_session_steps",
				Help:    "Consumed steps per terminated session",
				Buckets: prometheus.LinearBuckets(0, 5, 13),
			},
			[]string{"kind"},
		),
	}
}

// ObserveCall records one capability invocation.
func (p *PrometheusRecorder) ObserveCall(kind string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.capabilityCalls.WithLabelValues(kind, status).Inc()
	p.capabilityDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRound records the validation result of one completed round.
func (p *PrometheusRecorder) ObserveRound(rec debate.IterationRecord) {
	p.roundConfidence.Observe(rec.Confidence)
	p.roundViolations.Observe(float64(rec.ViolationCount))
}

// ObserveOutcome records a terminated session.
func (p *PrometheusRecorder) ObserveOutcome(kind string, rounds, steps int) {
	p.outcomesTotal.WithLabelValues(kind).Inc()
	p.sessionRounds.WithLabelValues(kind).Observe(float64(rounds))
	p.sessionSteps.WithLabelValues(kind).Observe(float64(steps))
}

// ObserveOverride records a router decision that replaced the supervisor's
// proposal to keep the round well-formed.
func (p *PrometheusRecorder) ObserveOverride(action string) {
	p.overridesTotal.WithLabelValues(action).Inc()
}
