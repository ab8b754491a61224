package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BatchJobMetrics records runs of the billing maintenance utilities.
type BatchJobMetrics struct {
	duration *prometheus.HistogramVec
	bills    *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

// NewBatchJobMetrics registers the batch job metrics on the provided registerer.
func NewBatchJobMetrics(reg prometheus.Registerer) *BatchJobMetrics {
	if reg == nil {
		return &BatchJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_batch_duration_seconds",
		Help:    "Duration of billing batch jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	bills := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_batch_bills_total",
		Help: "Bills processed by billing batch jobs.",
	}, []string{"job", "result"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_batch_runs_total",
		Help: "Scheduled billing job runs by outcome.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, bills, runs)
	return &BatchJobMetrics{duration: duration, bills: bills, runs: runs}
}

// ObserveDuration records the duration for the named job.
func (b *BatchJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if b == nil || b.duration == nil {
		return
	}
	b.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// AddProcessed records how many bills succeeded and failed in one run.
func (b *BatchJobMetrics) AddProcessed(job string, succeeded, failed int) {
	if b == nil || b.bills == nil {
		return
	}
	b.bills.WithLabelValues(normalizeLabel(job), "success").Add(float64(succeeded))
	b.bills.WithLabelValues(normalizeLabel(job), "failure").Add(float64(failed))
}

// IncRun counts one job run; err decides the result label.
func (b *BatchJobMetrics) IncRun(job string, err error) {
	if b == nil || b.runs == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	b.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
