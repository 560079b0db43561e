// File: internal/usecase/payout_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/domain/ports/repository"
)

// Compile-time check
var _ PayoutScheduler = (*payoutSched)(nil)

// PayoutScheduler plans and executes disbursements of accumulated escrow
// balances. Split-settled providers never accumulate platform-held balance
// and are outside its scope entirely.
type PayoutScheduler interface {
	// SchedulePayouts creates one pending payout per eligible provider
	// (available balance at or above the minimum, no open payout yet),
	// dated to the next payout window. Returns the number created.
	SchedulePayouts(ctx context.Context) (int, error)
	// ProcessScheduledPayouts disburses every due pending payout.
	// Per-payout failures are converted to failed status, never propagated.
	ProcessScheduledPayouts(ctx context.Context) (*model.BatchResult, error)
	// ProcessPayout runs the disbursement sequence for one payout.
	ProcessPayout(ctx context.Context, id, processedBy string) error

	CancelPayout(ctx context.Context, id, reason string) error
	// RetryPayout creates a new pending payout referencing the failed
	// original; the failed row is never mutated back to pending.
	RetryPayout(ctx context.Context, id string) (*model.ScheduledPayout, error)

	// CreateBatch groups pending unbatched payouts under a shared batch id
	// for bulk administrative processing. Returns the batch id and size.
	CreateBatch(ctx context.Context, limit int) (string, int, error)
	ProcessBatch(ctx context.Context, batchID string) (*model.BatchResult, error)

	GetPayout(ctx context.Context, id string) (*model.ScheduledPayout, error)
}

type PayoutPolicy struct {
	Cadence       string // daily | weekly | biweekly | monthly
	MinimumAmount decimal.Decimal
	Currency      string
	Method        string
	BatchLimit    int
}

type payoutSched struct {
	payouts   repository.PayoutRepository
	providers repository.ProviderRepository
	ledger    LedgerService
	disburser adapter.DisbursementGateway
	policy    PayoutPolicy

	now func() time.Time
	log *zerolog.Logger
}

func NewPayoutScheduler(
	payouts repository.PayoutRepository,
	providers repository.ProviderRepository,
	ledger LedgerService,
	disburser adapter.DisbursementGateway,
	policy PayoutPolicy,
	logger *zerolog.Logger,
) *payoutSched {
	if policy.BatchLimit <= 0 {
		policy.BatchLimit = 200
	}
	if policy.Method == "" {
		policy.Method = "bank_transfer"
	}
	return &payoutSched{
		payouts:   payouts,
		providers: providers,
		ledger:    ledger,
		disburser: disburser,
		policy:    policy,

		now: time.Now,
		log: logger,
	}
}

func (s *payoutSched) SchedulePayouts(ctx context.Context) (int, error) {
	providers, err := s.providers.ListEscrowSettled(ctx, nil)
	if err != nil {
		return 0, err
	}

	created := 0
	window := nextPayoutWindow(s.now().UTC(), s.policy.Cadence)
	for _, p := range providers {
		available, err := s.ledger.GetAvailableBalance(ctx, p.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("provider_id", p.ID).Msg("skipping provider: balance read failed")
			continue
		}
		if available.LessThan(s.policy.MinimumAmount) {
			continue
		}
		open, err := s.payouts.HasOpenPayout(ctx, nil, p.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("provider_id", p.ID).Msg("skipping provider: open payout check failed")
			continue
		}
		if open {
			continue
		}

		currency := p.Currency
		if currency == "" {
			currency = s.policy.Currency
		}
		now := s.now().UTC()
		payout := &model.ScheduledPayout{
			ID:           uuid.NewString(),
			ProviderID:   p.ID,
			Amount:       model.Round2(available),
			Currency:     currency,
			ScheduledFor: window,
			Status:       model.PayoutStatusPending,
			PayoutMethod: s.policy.Method,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.payouts.Save(ctx, nil, payout); err != nil {
			s.log.Error().Err(err).Str("provider_id", p.ID).Msg("failed to create scheduled payout")
			continue
		}
		created++
		s.log.Info().Str("payout_id", payout.ID).Str("provider_id", p.ID).
			Str("amount", payout.Amount.String()).Time("scheduled_for", window).
			Msg("payout scheduled")
	}
	return created, nil
}

func (s *payoutSched) ProcessScheduledPayouts(ctx context.Context) (*model.BatchResult, error) {
	due, err := s.payouts.ListDue(ctx, nil, s.now().UTC(), s.policy.BatchLimit)
	if err != nil {
		return nil, err
	}
	res := &model.BatchResult{}
	for _, p := range due {
		s.count(res, s.processOne(ctx, p, "scheduler"))
	}
	return res, nil
}

func (s *payoutSched) ProcessPayout(ctx context.Context, id, processedBy string) error {
	p, err := s.payouts.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	switch s.processOne(ctx, p, processedBy) {
	case payoutSkipped:
		return domain.ErrInvalidStatusChange
	case payoutFailed:
		return fmt.Errorf("%w: payout %s failed: %s", domain.ErrOperationFailed, p.ID, p.FailureReason)
	}
	return nil
}

type payoutOutcome int

const (
	payoutCompleted payoutOutcome = iota
	payoutFailed
	payoutSkipped
)

func (s *payoutSched) count(res *model.BatchResult, o payoutOutcome) {
	switch o {
	case payoutCompleted:
		res.Processed++
	case payoutFailed:
		res.Failed++
	default:
		res.Skipped++
	}
}

// processOne runs the full disbursement sequence for one payout: claim the
// row, re-check the available balance, debit, disburse, settle the status.
// Every failure path lands on a failed row; money debited for a disbursement
// that did not go through is credited back before the row is failed.
func (s *payoutSched) processOne(ctx context.Context, p *model.ScheduledPayout, processedBy string) payoutOutcome {
	ok, err := s.payouts.MarkProcessing(ctx, nil, p.ID)
	if err != nil {
		s.log.Error().Err(err).Str("payout_id", p.ID).Msg("failed to claim payout")
		return payoutSkipped
	}
	if !ok {
		// Another worker (or an admin cancel) won the race.
		return payoutSkipped
	}
	p.Status = model.PayoutStatusProcessing
	p.ProcessedBy = processedBy

	available, err := s.ledger.GetAvailableBalance(ctx, p.ProviderID)
	if err != nil {
		return s.failPayout(ctx, p, fmt.Sprintf("balance read failed: %v", err))
	}
	if available.LessThan(s.policy.MinimumAmount) {
		return s.failPayout(ctx, p, fmt.Sprintf("available balance %s below minimum %s", available, s.policy.MinimumAmount))
	}
	if available.LessThan(p.Amount) {
		// Balance shrank since scheduling (e.g. a refund). Pay what is
		// there instead of failing.
		reduced := model.Round2(available)
		p.Notes = fmt.Sprintf("amount reduced from %s to %s at processing time", p.Amount, reduced)
		p.Amount = reduced
		s.log.Info().Str("payout_id", p.ID).Str("amount", reduced.String()).Msg("payout amount reduced to available balance")
	}

	if _, err := s.ledger.DebitForPayout(ctx, p); err != nil {
		return s.failPayout(ctx, p, fmt.Sprintf("ledger debit failed: %v", err))
	}

	p.ReferenceNumber = "PO-" + ulid.Make().String()
	res, err := s.disburser.Disburse(ctx, p)
	if err != nil || !res.Success {
		reason := res.ErrorMessage
		if err != nil {
			reason = err.Error()
		}
		if _, rerr := s.ledger.ReverseDebitForPayout(ctx, p, p.Amount); rerr != nil {
			// The debit stands with no disbursement behind it; this needs
			// an operator, loudly.
			s.log.Error().Err(rerr).Str("payout_id", p.ID).Str("provider_id", p.ProviderID).
				Str("amount", p.Amount.String()).Msg("payout debit reversal failed after disbursement failure")
			reason = fmt.Sprintf("%s; debit reversal also failed: %v", reason, rerr)
		}
		return s.failPayout(ctx, p, fmt.Sprintf("disbursement failed: %s", reason))
	}

	now := s.now().UTC()
	p.Status = model.PayoutStatusCompleted
	p.DisbursementID = res.DisbursementID
	p.DisbursementRes = res.RawResponse
	p.ProcessedAt = &now
	p.UpdatedAt = now
	if err := s.payouts.Save(ctx, nil, p); err != nil {
		s.log.Error().Err(err).Str("payout_id", p.ID).Msg("failed to persist completed payout")
		return payoutFailed
	}
	s.log.Info().Str("payout_id", p.ID).Str("provider_id", p.ProviderID).
		Str("amount", p.Amount.String()).Str("reference", p.ReferenceNumber).
		Msg("payout completed")
	return payoutCompleted
}

func (s *payoutSched) failPayout(ctx context.Context, p *model.ScheduledPayout, reason string) payoutOutcome {
	now := s.now().UTC()
	p.Status = model.PayoutStatusFailed
	p.FailureReason = reason
	p.ProcessedAt = &now
	p.UpdatedAt = now
	if err := s.payouts.Save(ctx, nil, p); err != nil {
		s.log.Error().Err(err).Str("payout_id", p.ID).Msg("failed to persist failed payout")
	}
	s.log.Warn().Str("payout_id", p.ID).Str("reason", reason).Msg("payout failed")
	return payoutFailed
}

func (s *payoutSched) CancelPayout(ctx context.Context, id, reason string) error {
	p, err := s.payouts.FindByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if !p.CanBeCancelled() {
		return domain.ErrPayoutNotCancellable
	}
	p.Status = model.PayoutStatusCancelled
	p.Notes = reason
	p.UpdatedAt = s.now().UTC()
	if err := s.payouts.Save(ctx, nil, p); err != nil {
		return err
	}
	s.log.Info().Str("payout_id", p.ID).Str("reason", reason).Msg("payout cancelled")
	return nil
}

func (s *payoutSched) RetryPayout(ctx context.Context, id string) (*model.ScheduledPayout, error) {
	orig, err := s.payouts.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !orig.CanBeRetried() {
		return nil, domain.ErrPayoutNotRetryable
	}
	now := s.now().UTC()
	retry := &model.ScheduledPayout{
		ID:           uuid.NewString(),
		ProviderID:   orig.ProviderID,
		Amount:       orig.Amount,
		Currency:     orig.Currency,
		ScheduledFor: now,
		Status:       model.PayoutStatusPending,
		PayoutMethod: orig.PayoutMethod,
		RetryOfID:    &orig.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.payouts.Save(ctx, nil, retry); err != nil {
		return nil, err
	}
	s.log.Info().Str("payout_id", retry.ID).Str("retry_of", orig.ID).Msg("payout retry created")
	return retry, nil
}

func (s *payoutSched) CreateBatch(ctx context.Context, limit int) (string, int, error) {
	if limit <= 0 || limit > s.policy.BatchLimit {
		limit = s.policy.BatchLimit
	}
	pending, err := s.payouts.ListPendingUnbatched(ctx, nil, limit)
	if err != nil {
		return "", 0, err
	}
	if len(pending) == 0 {
		return "", 0, nil
	}
	batchID := uuid.NewString()
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	if err := s.payouts.AssignBatch(ctx, nil, ids, batchID); err != nil {
		return "", 0, err
	}
	s.log.Info().Str("batch_id", batchID).Int("count", len(ids)).Msg("payout batch created")
	return batchID, len(ids), nil
}

func (s *payoutSched) ProcessBatch(ctx context.Context, batchID string) (*model.BatchResult, error) {
	payouts, err := s.payouts.ListByBatch(ctx, nil, batchID)
	if err != nil {
		return nil, err
	}
	res := &model.BatchResult{BatchID: batchID}
	for _, p := range payouts {
		if p.Status != model.PayoutStatusPending {
			res.Skipped++
			continue
		}
		s.count(res, s.processOne(ctx, p, "batch:"+batchID))
	}
	return res, nil
}

func (s *payoutSched) GetPayout(ctx context.Context, id string) (*model.ScheduledPayout, error) {
	return s.payouts.FindByID(ctx, nil, id)
}

// nextPayoutWindow returns the start of the next payout window after now,
// at midnight UTC. Weekly and biweekly windows open on Mondays.
func nextPayoutWindow(now time.Time, cadence string) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch cadence {
	case "daily":
		return midnight.AddDate(0, 0, 1)
	case "biweekly":
		return nextWeekday(midnight, time.Monday).AddDate(0, 0, 7)
	case "monthly":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	default: // weekly
		return nextWeekday(midnight, time.Monday)
	}
}

func nextWeekday(from time.Time, day time.Weekday) time.Time {
	d := int(day-from.Weekday()+7) % 7
	if d == 0 {
		d = 7
	}
	return from.AddDate(0, 0, d)
}
