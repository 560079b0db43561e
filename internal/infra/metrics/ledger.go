package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerEntriesTotal) }

var ledgerEntriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Ledger entries appended, labeled by type (credit/debit/hold/release).",
	},
	[]string{"type"},
)

func IncLedgerEntry(entryType string) {
	ledgerEntriesTotal.WithLabelValues(norm(entryType)).Inc()
}
