package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"zeen-connect/internal/infra/metrics"
	"zeen-connect/internal/usecase"
)

// PaymentReconciler periodically sweeps payments stuck in processing and
// asks the gateway for their real outcome. This covers lost callbacks and
// crashes between the callback and completion.
type PaymentReconciler struct {
	mgr        usecase.PaymentManager
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewPaymentReconciler(mgr usecase.PaymentManager, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{mgr: mgr, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	n, err := w.mgr.ReconcileStale(ctx, cutoff, 200)
	metrics.IncJobRun("payment_reconcile", err == nil)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciliation sweep failed")
		return
	}
	if n > 0 {
		metrics.AddPaymentsReconciled(n)
		w.log.Info().Int("reconciled", n).Msg("stale payments reconciled")
	}
}
