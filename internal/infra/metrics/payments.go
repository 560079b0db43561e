package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsVolumeTotal,
		paymentsReconciledTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status transition (pending/processing/completed/failed/refunded).",
		},
		[]string{"status", "gateway_type"},
	)

	paymentsVolumeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_volume_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	paymentsReconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Stale processing payments finalized by the reconciliation sweep.",
		},
	)
)

func IncPayment(status, gatewayType string) {
	paymentsTotal.WithLabelValues(norm(status), norm(gatewayType)).Inc()
}

func AddPaymentVolume(currency string, amount float64) {
	paymentsVolumeTotal.WithLabelValues(norm(currency)).Add(amount)
}

func AddPaymentsReconciled(n int) {
	paymentsReconciledTotal.Add(float64(n))
}
