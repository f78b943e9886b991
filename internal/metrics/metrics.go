// Package metrics exposes Prometheus instruments for the reconciliation
// engine and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"inventory-reconciliation-service/internal/models"
)

// ReconcilerMetrics records engine runs, source fetches and classification
// counts. It implements reconciler.Recorder. A nil *ReconcilerMetrics is a
// no-op.
type ReconcilerMetrics struct {
	runDuration   *prometheus.HistogramVec
	fetchDuration *prometheus.HistogramVec
	fetchFailures *prometheus.CounterVec
	locations     *prometheus.CounterVec
}

// NewReconcilerMetrics registers the engine metrics on the provided registerer.
func NewReconcilerMetrics(reg prometheus.Registerer) *ReconcilerMetrics {
	if reg == nil {
		return &ReconcilerMetrics{}
	}
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciliation_run_duration_seconds",
		Help:    "Duration of reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciliation_source_fetch_duration_seconds",
		Help:    "Duration of source fetches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	fetchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_source_fetch_failures_total",
		Help: "Failed source fetches.",
	}, []string{"source"})
	locations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_locations_total",
		Help: "Merged locations classified, by discrepancy level.",
	}, []string{"level"})
	reg.MustRegister(runDuration, fetchDuration, fetchFailures, locations)
	return &ReconcilerMetrics{
		runDuration:   runDuration,
		fetchDuration: fetchDuration,
		fetchFailures: fetchFailures,
		locations:     locations,
	}
}

// ObserveRun records the duration of one run.
func (m *ReconcilerMetrics) ObserveRun(status string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(normalizeLabel(status)).Observe(duration.Seconds())
}

// ObserveFetch records one source fetch and counts it if it failed.
func (m *ReconcilerMetrics) ObserveFetch(source models.SourceName, status string, duration time.Duration) {
	if m == nil || m.fetchDuration == nil {
		return
	}
	label := normalizeLabel(string(source))
	m.fetchDuration.WithLabelValues(label).Observe(duration.Seconds())
	if status != "ok" {
		m.fetchFailures.WithLabelValues(label).Inc()
	}
}

// CountLocations adds count locations classified at level.
func (m *ReconcilerMetrics) CountLocations(level models.DiscrepancyLevel, count int) {
	if m == nil || m.locations == nil || count <= 0 {
		return
	}
	m.locations.WithLabelValues(normalizeLabel(string(level))).Add(float64(count))
}

// HTTPMetrics records API requests.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	reg.MustRegister(duration)
	return &HTTPMetrics{duration: duration}
}

// ObserveRequest records one request.
func (m *HTTPMetrics) ObserveRequest(route, method string, code int, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(route), method, strconv.Itoa(code)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
