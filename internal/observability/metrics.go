package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLM calls run far longer than typical HTTP handlers
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Metrics holds the gateway's Prometheus instruments on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	resolutionsTotal   *prometheus.CounterVec
	attemptsPerRequest prometheus.Histogram
	providerHealthy    *prometheus.GaugeVec
	snapshotReloads    *prometheus.CounterVec
	auditDropped       prometheus.Counter
}

// NewMetrics builds and registers all gateway instruments
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "requests_total",
			Help:      "Dispatched requests by outcome and serving provider.",
		}, []string{"outcome", "provider"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "modelgate",
			Name:      "request_duration_seconds",
			Help:      "End-to-end dispatch latency.",
			Buckets:   durationBuckets,
		}, []string{"outcome"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "model_resolutions_total",
			Help:      "Model resolutions by source (override, direct, rename, passthrough).",
		}, []string{"source"}),
		attemptsPerRequest: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "modelgate",
			Name:      "attempts_per_request",
			Help:      "Provider attempts made for one request.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		providerHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "modelgate",
			Name:      "provider_healthy",
			Help:      "1 when the provider's last reported outcome was a success.",
		}, []string{"provider"}),
		snapshotReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "snapshot_reloads_total",
			Help:      "Routing snapshot reloads by result.",
		}, []string{"result"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modelgate",
			Name:      "audit_dropped_total",
			Help:      "Decision records dropped because the audit buffer was full.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.resolutionsTotal,
		m.attemptsPerRequest,
		m.providerHealthy,
		m.snapshotReloads,
		m.auditDropped,
	)

	return m
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished dispatch
func (m *Metrics) ObserveRequest(outcome, provider string, seconds float64) {
	if provider == "" {
		provider = "none"
	}
	m.requestsTotal.WithLabelValues(outcome, provider).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(seconds)
}

// ObserveAttempts records how many providers one request tried
func (m *Metrics) ObserveAttempts(attempts int) {
	m.attemptsPerRequest.Observe(float64(attempts))
}

// IncResolution counts one model resolution by source
func (m *Metrics) IncResolution(source string) {
	m.resolutionsTotal.WithLabelValues(source).Inc()
}

// SetProviderHealthy reflects the provider's last reported outcome
func (m *Metrics) SetProviderHealthy(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	m.providerHealthy.WithLabelValues(provider).Set(value)
}

// IncSnapshotReload counts a reload attempt; result is "success" or "error"
func (m *Metrics) IncSnapshotReload(result string) {
	m.snapshotReloads.WithLabelValues(result).Inc()
}

// IncAuditDropped counts a decision record lost to backpressure
func (m *Metrics) IncAuditDropped() {
	m.auditDropped.Inc()
}
