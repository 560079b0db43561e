package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		payoutsTotal,
		payoutsVolumeTotal,
	)
}

var (
	payoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_total",
			Help: "Payout processing outcomes (completed/failed/skipped).",
		},
		[]string{"outcome"},
	)

	payoutsVolumeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_volume_total",
			Help: "The total monetary value of completed payouts, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func AddPayoutOutcomes(completed, failed, skipped int) {
	payoutsTotal.WithLabelValues("completed").Add(float64(completed))
	payoutsTotal.WithLabelValues("failed").Add(float64(failed))
	payoutsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

func AddPayoutVolume(currency string, amount float64) {
	payoutsVolumeTotal.WithLabelValues(norm(currency)).Add(amount)
}
