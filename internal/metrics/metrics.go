// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	fallbacks     *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketing",
			Name:      "routed_requests_total",
			Help:      "Routed chat requests by task and outcome.",
		}, []string{"task", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketing",
			Name:      "pipeline_stage_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task", "stage"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketing",
			Name:      "analysis_fallbacks_total",
			Help:      "Analyses that used the deterministic fallback.",
		}, []string{"task"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketing",
			Name:      "provider_calls_total",
			Help:      "Data provider calls by provider and result.",
		}, []string{"provider", "result"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.stageDuration,
		m.fallbacks,
		m.providerCalls,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveRequest counts one routed request.
func (m *Metrics) ObserveRequest(task, outcome string) {
	if m == nil {
		return
	}
	if task == "" {
		task = "none"
	}
	m.requests.WithLabelValues(task, outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(task, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(task, stage).Observe(d.Seconds())
}

// ObserveFallback counts an analysis fallback.
func (m *Metrics) ObserveFallback(task string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(task).Inc()
}

// ObserveProvider counts a provider call.
func (m *Metrics) ObserveProvider(provider string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(provider, result).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
