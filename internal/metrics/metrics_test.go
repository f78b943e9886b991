package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"inventory-reconciliation-service/internal/models"
)

func TestReconcilerMetricsExportsCountersAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewReconcilerMetrics(reg)

	metrics.ObserveRun("ok", 120*time.Millisecond)
	metrics.ObserveFetch(models.SourceA, "ok", 40*time.Millisecond)
	metrics.ObserveFetch(models.SourceB, "failed", 10*time.Millisecond)
	metrics.ObserveFetch(models.SourceB, "failed", 10*time.Millisecond)
	metrics.CountLocations(models.DiscrepancyWarning, 3)
	metrics.CountLocations(models.DiscrepancyWarning, 2)
	metrics.CountLocations(models.DiscrepancyCritical, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "reconciliation_source_fetch_failures_total", "source", "B"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 2 {
		t.Fatalf("expected failures=2, got %f", got)
	}

	if _, err := fetchCounterValue(mfs, "reconciliation_source_fetch_failures_total", "source", "A"); err == nil {
		t.Fatal("expected no failure series for source A")
	}

	if got, err := fetchCounterValue(mfs, "reconciliation_locations_total", "level", "WARNING"); err != nil {
		t.Fatalf("fetch locations: %v", err)
	} else if got != 5 {
		t.Fatalf("expected WARNING=5, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "reconciliation_run_duration_seconds", "status", "ok"); err != nil {
		t.Fatalf("fetch run duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.ObserveRequest("/healthz", "GET", 200, 5*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "route", "/healthz"); err != nil {
		t.Fatalf("fetch request duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var metrics *ReconcilerMetrics
	metrics.ObserveRun("ok", time.Second)
	metrics.ObserveFetch(models.SourceA, "failed", time.Second)
	metrics.CountLocations(models.DiscrepancyOK, 1)

	unregistered := NewReconcilerMetrics(nil)
	unregistered.ObserveRun("ok", time.Second)

	var httpMetrics *HTTPMetrics
	httpMetrics.ObserveRequest("/", "GET", 200, time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("label %s=%s not found for %s", label, value, name)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("label %s=%s not found for %s", label, value, name)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
