package sched

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"zeen-connect/internal/config"
	"zeen-connect/internal/infra/metrics"
	"zeen-connect/internal/infra/worker"
	"zeen-connect/internal/usecase"
)

// PayoutWorker drives the payout lifecycle on two cron schedules: one tick
// scans settled balances and schedules eligible payouts, the other processes
// payouts whose window has arrived. Ticks are handed to the shared pool so a
// slow disbursement run never blocks the cron loop.
type PayoutWorker struct {
	sched usecase.PayoutScheduler
	pool  *worker.Pool
	cron  *cron.Cron
	cfg   config.PayoutConfig
	log   *zerolog.Logger
}

func NewPayoutWorker(sched usecase.PayoutScheduler, pool *worker.Pool, cfg config.PayoutConfig, logger *zerolog.Logger) *PayoutWorker {
	l := logger.With().Str("component", "PayoutWorker").Logger()
	return &PayoutWorker{
		sched: sched,
		pool:  pool,
		cron:  cron.New(),
		cfg:   cfg,
		log:   &l,
	}
}

func (w *PayoutWorker) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.cfg.ScheduleCron, func() { w.submit(w.scheduleTick) }); err != nil {
		return err
	}
	if _, err := w.cron.AddFunc(w.cfg.ProcessCron, func() { w.submit(w.processTick) }); err != nil {
		return err
	}
	w.log.Info().Str("schedule_cron", w.cfg.ScheduleCron).Str("process_cron", w.cfg.ProcessCron).
		Msg("starting payout worker")
	w.cron.Start()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

func (w *PayoutWorker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.log.Info().Msg("payout worker stopped")
}

func (w *PayoutWorker) submit(tick func(ctx context.Context) error) {
	if err := w.pool.Submit(tick); err != nil {
		w.log.Warn().Err(err).Msg("payout tick dropped")
	}
}

func (w *PayoutWorker) scheduleTick(ctx context.Context) error {
	n, err := w.sched.SchedulePayouts(ctx)
	metrics.IncJobRun("payout_schedule", err == nil)
	if err != nil {
		w.log.Error().Err(err).Msg("payout scheduling tick failed")
		return err
	}
	if n > 0 {
		w.log.Info().Int("scheduled", n).Msg("payouts scheduled")
	}
	return nil
}

func (w *PayoutWorker) processTick(ctx context.Context) error {
	res, err := w.sched.ProcessScheduledPayouts(ctx)
	metrics.IncJobRun("payout_process", err == nil)
	if err != nil {
		w.log.Error().Err(err).Msg("payout processing tick failed")
		return err
	}
	metrics.AddPayoutOutcomes(res.Processed, res.Failed, res.Skipped)
	if res.Processed+res.Failed+res.Skipped > 0 {
		w.log.Info().Int("processed", res.Processed).Int("failed", res.Failed).
			Int("skipped", res.Skipped).Msg("payout processing tick finished")
	}
	return nil
}
