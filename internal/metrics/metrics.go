// Package metrics exposes Prometheus collectors for the admission path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision outcomes.
const (
	OutcomeApproved       = "approved"
	OutcomeRejected       = "rejected"
	OutcomeConflict       = "conflict"
	OutcomeInvalid        = "invalid_transition"
	OutcomeNotFound       = "not_found"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeError          = "error"
)

// Metrics groups the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	Decisions        *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	TxRetries        prometheus.Counter
	PermitsExpired   prometheus.Counter
	SideEffectErrors *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "street",
			Name:      "admission_decisions_total",
			Help:      "Admission decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		DecisionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "street",
			Name:      "admission_decision_seconds",
			Help:      "Time spent deciding a request, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		TxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "street",
			Name:      "admission_tx_retries_total",
			Help:      "Decision transactions retried after a serialization failure.",
		}),
		PermitsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "street",
			Name:      "permits_expired_total",
			Help:      "Permits moved to EXPIRED by the sweeper.",
		}),
		SideEffectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "street",
			Name:      "admission_side_effect_errors_total",
			Help:      "Failed post-commit audit or notification writes.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Decisions,
		m.DecisionDuration,
		m.TxRetries,
		m.PermitsExpired,
		m.SideEffectErrors,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
