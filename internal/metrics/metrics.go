// Package metrics holds the Prometheus collectors for publish and
// reconcile outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hivepress"

// Publish outcome label values.
const (
	OutcomePublished = "published"
	OutcomeExisting  = "existing"
	OutcomeFailed    = "failed"
)

// Metrics is a set of collectors registered on their own registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	publishes       *prometheus.CounterVec
	replies         *prometheus.CounterVec
	reconcileTime   prometheus.Histogram
	reconcileErrors prometheus.Counter
	sweeps          prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish calls by outcome.",
		}, []string{"outcome"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_replies_total",
			Help:      "Remote replies seen by reconciliation, by result.",
		}, []string{"result"}),
		reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Wall time of one post reconciliation.",
			Buckets:   prometheus.DefBuckets,
		}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_errors_total",
			Help:      "Reconciliations that returned an error.",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Completed sweeps over all published posts.",
		}),
	}
	m.registry.MustRegister(m.publishes, m.replies, m.reconcileTime, m.reconcileErrors, m.sweeps)
	return m
}

// Registry exposes the registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Publish counts one publish call.
func (m *Metrics) Publish(outcome string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(outcome).Inc()
}

// Reconciled records one successful reconciliation.
func (m *Metrics) Reconciled(imported, skipped int, seconds float64) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues("imported").Add(float64(imported))
	m.replies.WithLabelValues("skipped").Add(float64(skipped))
	m.reconcileTime.Observe(seconds)
}

// ReconcileFailed counts one failed reconciliation.
func (m *Metrics) ReconcileFailed() {
	if m == nil {
		return
	}
	m.reconcileErrors.Inc()
}

// Swept counts one completed sweep.
func (m *Metrics) Swept() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}
