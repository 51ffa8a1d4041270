// Package metrics provides Prometheus metrics for SDK operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for SDK operations.
// A nil *Metrics is a valid no-op instance, so callers never have to guard
// their recording calls.
type Metrics struct {
	enabled bool

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	replaysTotal    prometheus.Counter

	// Token renewal metrics
	refreshesTotal *prometheus.CounterVec

	// Upload metrics
	uploadBytesTotal prometheus.Counter
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	// Request metrics
	m.requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistream_requests_total",
		Help: "Total API requests by method and status class",
	}, []string{"method", "code_class"})

	m.requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vistream_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.replaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vistream_request_replays_total",
		Help: "Total requests replayed after a 401-triggered renewal",
	})

	// Token renewal metrics
	m.refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistream_token_refreshes_total",
		Help: "Total access token renewals by outcome",
	}, []string{"outcome"})

	// Upload metrics
	m.uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vistream_upload_bytes_total",
		Help: "Total bytes uploaded in multipart requests",
	})

	return m
}

// ObserveRequest records a completed API request.
func (m *Metrics) ObserveRequest(method, codeClass string, durationSeconds float64) {
	if m == nil || !m.enabled {
		return
	}
	m.requestsTotal.WithLabelValues(method, codeClass).Inc()
	m.requestDuration.Observe(durationSeconds)
}

// ObserveReplay records a 401-triggered request replay.
func (m *Metrics) ObserveReplay() {
	if m == nil || !m.enabled {
		return
	}
	m.replaysTotal.Inc()
}

// ObserveRefresh records a token renewal outcome ("success" or "failure").
func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil || !m.enabled {
		return
	}
	m.refreshesTotal.WithLabelValues(outcome).Inc()
}

// ObserveUploadBytes records bytes sent in an upload body.
func (m *Metrics) ObserveUploadBytes(n int64) {
	if m == nil || !m.enabled {
		return
	}
	m.uploadBytesTotal.Add(float64(n))
}
