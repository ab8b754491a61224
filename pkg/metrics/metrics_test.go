package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestBatchJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBatchJobMetrics(reg)
	job := "rebuild-all"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.AddProcessed(job, 4, 1)
	metrics.IncRun(job, nil)
	metrics.IncRun(job, errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "billing_batch_bills_total", map[string]string{"job": job, "result": "success"}); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 4 {
		t.Fatalf("expected success=4, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "billing_batch_bills_total", map[string]string{"job": job, "result": "failure"}); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "billing_batch_runs_total", map[string]string{"job": job, "result": "failure"}); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one failed run, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "billing_batch_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestBillingMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBillingMetrics(reg)
	metrics.ObserveOperation("record_payment", nil)
	metrics.ObserveOperation("record_payment", errors.New("boom"))
	metrics.ObserveOperation("record_payment", nil)
	metrics.IncReversal("compensated")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "billing_operations_total", map[string]string{"operation": "record_payment", "outcome": "success"}); got != 2 {
		t.Fatalf("expected 2 successes, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "billing_operations_total", map[string]string{"operation": "record_payment", "outcome": "error"}); got != 1 {
		t.Fatalf("expected 1 error, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "wallet_reversals_total", map[string]string{"outcome": "compensated"}); got != 1 {
		t.Fatalf("expected 1 compensation, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var billing *BillingMetrics
	billing.ObserveOperation("void", nil)
	billing.IncReversal("reversed")

	var batch *BatchJobMetrics
	batch.AddProcessed("x", 1, 1)
	batch.ObserveDuration("x", time.Second)
	batch.IncRun("x", nil)

	NewBillingMetrics(nil).IncReversal("reversed")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), map[string]string{label: value}) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(labels []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, label := range labels {
		if v, ok := want[label.GetName()]; ok && v == label.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
