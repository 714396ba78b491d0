// Package metrics provides Prometheus instrumentation for Nucleus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for Nucleus.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ToolCallsTotal    *prometheus.CounterVec
	ProviderTimeouts  *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	IndexedDocuments  prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all Nucleus metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// Include default Go and process collectors
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nucleus_requests_total",
				Help: "Total IPC requests by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nucleus_request_duration_seconds",
				Help:    "IPC request latency distribution, from connection accept to final chunk.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"type"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nucleus_tool_calls_total",
				Help: "Total plugin invocations by plugin name and outcome.",
			},
			[]string{"plugin", "outcome"},
		),
		ProviderTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nucleus_provider_timeouts_total",
				Help: "Total provider calls that exceeded their deadline, by backend.",
			},
			[]string{"backend"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nucleus_active_connections",
				Help: "Number of IPC connections currently being served.",
			},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nucleus_indexed_documents",
				Help: "Number of chunks currently stored in the vector store.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ToolCallsTotal,
		m.ProviderTimeouts,
		m.ActiveConnections,
		m.IndexedDocuments,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one completed IPC request.
func (m *Metrics) RecordRequest(requestType, outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(requestType, outcome).Inc()
	m.RequestDuration.WithLabelValues(requestType).Observe(duration.Seconds())
}

// RecordToolCall records one plugin execution.
func (m *Metrics) RecordToolCall(plugin, outcome string) {
	m.ToolCallsTotal.WithLabelValues(plugin, outcome).Inc()
}

// RecordProviderTimeout records a provider call that exceeded its deadline.
func (m *Metrics) RecordProviderTimeout(backend string) {
	m.ProviderTimeouts.WithLabelValues(backend).Inc()
}

// TrackConnection increments ActiveConnections and returns a func that
// decrements it, meant to be deferred at the top of a connection handler.
func (m *Metrics) TrackConnection() func() {
	m.ActiveConnections.Inc()
	return m.ActiveConnections.Dec
}

// SetIndexedDocuments updates the indexed-document gauge to count.
func (m *Metrics) SetIndexedDocuments(count int) {
	m.IndexedDocuments.Set(float64(count))
}
