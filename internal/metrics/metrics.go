// Package metrics exposes Prometheus instruments for the visualization
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "renovate"

// Metrics groups the pipeline's collectors.
type Metrics struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	validationScore prometheus.Histogram
	concepts        *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	analyses        *prometheus.CounterVec
	sessions        prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Image generation attempts by outcome.",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_call_seconds",
			Help:      "Latency of external capability calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}, []string{"capability"}),
		validationScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_score",
			Help:      "Structural fidelity scores reported by the validator.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		concepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concepts_total",
			Help:      "Concepts by final status.",
		}, []string{"status"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "concept_batch_seconds",
			Help:      "Wall time of a full concept batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photo_analyses_total",
			Help:      "Photo analyses by result.",
		}, []string{"result"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Visualization sessions created.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.attempts, m.attemptDuration, m.validationScore, m.concepts,
		m.batchDuration, m.analyses, m.sessions,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Attempt records one generation attempt. Outcome is one of "accepted",
// "rejected", "error" or "unvalidated".
func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

// ObserveCall records the latency of a capability call.
func (m *Metrics) ObserveCall(capability string, d time.Duration) {
	if m == nil {
		return
	}
	m.attemptDuration.WithLabelValues(capability).Observe(d.Seconds())
}

// ValidationScore records a validator score.
func (m *Metrics) ValidationScore(score float64) {
	if m == nil {
		return
	}
	m.validationScore.Observe(score)
}

// Concept records a finished concept, status "completed" or "failed".
func (m *Metrics) Concept(status string) {
	if m == nil {
		return
	}
	m.concepts.WithLabelValues(status).Inc()
}

// Batch records the duration of a concept batch.
func (m *Metrics) Batch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// Analysis records a photo analysis, result "ok" or "degraded".
func (m *Metrics) Analysis(result string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(result).Inc()
}

// SessionCreated counts a new session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}
