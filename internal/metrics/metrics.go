package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the decision service.
type Metrics struct {
	// Counters
	Decisions        *prometheus.CounterVec
	DetectorVerdicts *prometheus.CounterVec
	DetectorFailures *prometheus.CounterVec
	AuditFailures    *prometheus.CounterVec
	AuditDropped     prometheus.Counter
	HTTPRequests     *prometheus.CounterVec

	// Gauges
	AuditQueueDepth prometheus.Gauge

	// Histograms
	DetectorLatency *prometheus.HistogramVec
	HTTPDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafml_decisions_total",
				Help: "Total decisions by combined verdict",
			},
			[]string{"dataset", "model", "verdict"},
		),

		DetectorVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafml_detector_verdicts_total",
				Help: "Total detector verdicts by detector and verdict",
			},
			[]string{"detector", "verdict"},
		),

		DetectorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafml_detector_failures_total",
				Help: "Total detector invocations that failed",
			},
			[]string{"detector"},
		),

		AuditFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafml_audit_write_failures_total",
				Help: "Total audit entries a sink failed to persist",
			},
			[]string{"sink"},
		),

		AuditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wafml_audit_dropped_total",
				Help: "Total audit entries dropped because the queue was full",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wafml_http_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		AuditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wafml_audit_queue_depth",
				Help: "Current depth of the audit queue",
			},
		),

		DetectorLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wafml_detector_latency_seconds",
				Help:    "Latency of one detector invocation",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"detector"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wafml_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method"},
		),

		gatherer: reg,
	}

	reg.MustRegister(
		m.Decisions,
		m.DetectorVerdicts,
		m.DetectorFailures,
		m.AuditFailures,
		m.AuditDropped,
		m.HTTPRequests,
		m.AuditQueueDepth,
		m.DetectorLatency,
		m.HTTPDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
