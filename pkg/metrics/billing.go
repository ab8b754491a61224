package metrics

import "github.com/prometheus/client_golang/prometheus"

// BillingMetrics counts billing operations and wallet reversal outcomes.
type BillingMetrics struct {
	operations *prometheus.CounterVec
	reversals  *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_operations_total",
		Help: "Billing operations by name and outcome.",
	}, []string{"operation", "outcome"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_reversals_total",
		Help: "Wallet ledger reversals by outcome (reversed or compensated).",
	}, []string{"outcome"})
	reg.MustRegister(operations, reversals)
	return &BillingMetrics{operations: operations, reversals: reversals}
}

// ObserveOperation counts one billing operation; err decides the outcome label.
func (b *BillingMetrics) ObserveOperation(operation string, err error) {
	if b == nil || b.operations == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	b.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

// IncReversal counts one wallet reversal outcome.
func (b *BillingMetrics) IncReversal(outcome string) {
	if b == nil || b.reversals == nil {
		return
	}
	b.reversals.WithLabelValues(normalizeLabel(outcome)).Inc()
}
