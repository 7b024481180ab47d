// internal/utils/metrics.go
package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes used as metric label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected_in_flight"
	OutcomeCancelled = "cancelled"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	failuresTotal      *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	inFlight           prometheus.Gauge
	sessionsActive     prometheus.Gauge
	wsClients          prometheus.Gauge
	scriptgenRequests  *prometheus.CounterVec
	visualRequests     *prometheus.CounterVec
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector creates a collector with its own registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptform_submissions_total",
				Help: "Form submissions by final outcome",
			},
			[]string{"outcome"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptform_failures_total",
				Help: "Failed submissions by error kind",
			},
			[]string{"kind"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptform_generation_duration_seconds",
				Help:    "Time from submit to resolution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scriptform_submissions_in_flight",
			Help: "Requests currently awaiting the generation service",
		}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scriptform_sessions_active",
			Help: "Form sessions held in memory",
		}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scriptform_websocket_clients",
			Help: "Connected websocket subscribers",
		}),
		scriptgenRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgen_requests_total",
				Help: "Script generation requests served, by provider and status",
			},
			[]string{"provider", "status"},
		),
		visualRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visualgen_requests_total",
				Help: "Visual generation requests served, by status",
			},
			[]string{"status"},
		),
	}
}

// SubmissionStarted marks a request as in flight.
func (m *MetricsCollector) SubmissionStarted() {
	m.inFlight.Inc()
}

// SubmissionFinished records the outcome of a request started with
// SubmissionStarted. kind is the error type for failures, empty otherwise.
func (m *MetricsCollector) SubmissionFinished(outcome, kind string, elapsed time.Duration) {
	m.inFlight.Dec()
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	m.generationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome == OutcomeFailed && kind != "" {
		m.failuresTotal.WithLabelValues(kind).Inc()
	}
}

// SubmissionRejected records a submit refused by the single-flight guard.
func (m *MetricsCollector) SubmissionRejected() {
	m.submissionsTotal.WithLabelValues(OutcomeRejected).Inc()
}

// SetSessions sets the live session gauge.
func (m *MetricsCollector) SetSessions(n int) {
	m.sessionsActive.Set(float64(n))
}

func (m *MetricsCollector) WebSocketConnected() {
	m.wsClients.Inc()
}

func (m *MetricsCollector) WebSocketDisconnected() {
	m.wsClients.Dec()
}

// ScriptGenServed counts one request handled by the generation service.
func (m *MetricsCollector) ScriptGenServed(provider string, status int) {
	m.scriptgenRequests.WithLabelValues(provider, http.StatusText(status)).Inc()
}

// VisualsServed counts one /generate-visuals request.
func (m *MetricsCollector) VisualsServed(status int) {
	m.visualRequests.WithLabelValues(http.StatusText(status)).Inc()
}

// Handler serves the Prometheus exposition format.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
