// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerService = (*ledgerSvc)(nil)

// LedgerService is the system of record for provider balances. Balance is
// carried forward on each append-only entry; the current balance is the last
// entry's balance_after, never recomputed by summation except as a
// consistency check.
type LedgerService interface {
	// CreditProvider posts the provider's share of a completed escrow
	// payment and links the entry id back onto the payment exactly once.
	CreditProvider(ctx context.Context, payment *model.Payment) (*model.LedgerEntry, error)
	// DebitForPayout removes a disbursed payout amount from the balance.
	DebitForPayout(ctx context.Context, payout *model.ScheduledPayout) (*model.LedgerEntry, error)
	// ReverseDebitForPayout compensates a payout debit whose disbursement
	// failed, so funds are never lost across gateway failures.
	ReverseDebitForPayout(ctx context.Context, payout *model.ScheduledPayout, amount decimal.Decimal) (*model.LedgerEntry, error)
	// DebitForRefund is the explicit ledger effect of a confirmed refund;
	// the payment manager never posts it implicitly.
	DebitForRefund(ctx context.Context, payment *model.Payment, amount decimal.Decimal) (*model.LedgerEntry, error)

	// HoldFunds reserves part of the balance: a negative ledger movement
	// typed `hold`, not a separate bucket.
	HoldFunds(ctx context.Context, providerID string, amount decimal.Decimal, reason string, bookingID *string) (*model.LedgerEntry, error)
	// ReleaseFunds reverses a hold. Only hold-typed entries may be
	// released, and each at most once.
	ReleaseFunds(ctx context.Context, holdEntryID string) (*model.LedgerEntry, error)

	GetProviderBalance(ctx context.Context, providerID string) (decimal.Decimal, error)
	GetHeldAmount(ctx context.Context, providerID string) (decimal.Decimal, error)
	GetAvailableBalance(ctx context.Context, providerID string) (decimal.Decimal, error)
	GetBalanceSummary(ctx context.Context, providerID string) (*model.BalanceSummary, error)
	GetEarningsInRange(ctx context.Context, providerID string, from, to time.Time) (decimal.Decimal, error)
	GetStatement(ctx context.Context, providerID string, limit, offset int) ([]*model.LedgerEntry, error)

	// CheckConsistency replays all entries and compares with the stored
	// last balance; a mismatch is a fatal integrity error.
	CheckConsistency(ctx context.Context, providerID string) error
}

// Locker serializes ledger writers per provider across processes. Satisfied
// by redis.RedisLocker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type ledgerSvc struct {
	ledger    repository.LedgerRepository
	payments  repository.PaymentRepository
	payouts   repository.PayoutRepository
	providers repository.ProviderRepository
	tm        repository.TransactionManager
	locker    Locker
	lockTTL   time.Duration
	log       *zerolog.Logger
}

func NewLedgerService(
	ledger repository.LedgerRepository,
	payments repository.PaymentRepository,
	payouts repository.PayoutRepository,
	providers repository.ProviderRepository,
	tm repository.TransactionManager,
	locker Locker,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *ledgerSvc {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &ledgerSvc{
		ledger: ledger, payments: payments, payouts: payouts, providers: providers,
		tm: tm, locker: locker, lockTTL: lockTTL, log: logger,
	}
}

func ledgerLockKey(providerID string) string { return "ledger:provider:" + providerID }

// append serializes per provider (redis lock + provider row lock in one
// transaction), reads the latest balance, and inserts exactly one entry.
// extra runs inside the same transaction after the insert.
func (s *ledgerSvc) append(ctx context.Context, providerID string, build func(ctx context.Context, tx repository.Tx, balance decimal.Decimal) (*model.LedgerEntry, error), extra func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error) (*model.LedgerEntry, error) {
	token, err := s.locker.TryLock(ctx, ledgerLockKey(providerID), s.lockTTL)
	if err != nil {
		return nil, domain.ErrLedgerLockBusy
	}
	defer func() { _ = s.locker.Unlock(ctx, ledgerLockKey(providerID), token) }()

	var entry *model.LedgerEntry
	err = s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.providers.LockForLedger(ctx, tx, providerID); err != nil {
			return err
		}
		balance := decimal.Zero
		last, err := s.ledger.LastEntry(ctx, tx, providerID)
		switch err {
		case nil:
			balance = last.BalanceAfter
		case domain.ErrNotFound:
			// first entry for this provider
		default:
			return err
		}

		entry, err = build(ctx, tx, balance)
		if err != nil {
			return err
		}
		entry.ID = ulid.Make().String()
		entry.ProviderID = providerID
		entry.BalanceAfter = entry.Apply(balance)
		entry.CreatedAt = time.Now().UTC()
		if err := s.ledger.Insert(ctx, tx, entry); err != nil {
			return err
		}
		if extra != nil {
			return extra(ctx, tx, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("provider_id", providerID).Str("entry_id", entry.ID).
		Str("type", string(entry.Type)).Str("balance_after", entry.BalanceAfter.String()).
		Msg("ledger entry appended")
	return entry, nil
}

func (s *ledgerSvc) CreditProvider(ctx context.Context, payment *model.Payment) (*model.LedgerEntry, error) {
	if payment == nil || !payment.ProviderAmount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	if payment.GatewayType != model.GatewayTypeEscrow {
		// Split funds never pass through platform custody.
		return nil, fmt.Errorf("%w: credit for non-escrow payment %s", domain.ErrInvalidArgument, payment.ID)
	}
	if payment.LedgerEntryID != nil {
		return nil, fmt.Errorf("%w: payment %s already credited", domain.ErrAlreadyExists, payment.ID)
	}
	entry, err := s.append(ctx, payment.ProviderID, func(_ context.Context, _ repository.Tx, _ decimal.Decimal) (*model.LedgerEntry, error) {
		return &model.LedgerEntry{
			PaymentID:   &payment.ID,
			BookingID:   strPtrOrNil(payment.BookingID),
			Amount:      payment.ProviderAmount,
			Type:        model.LedgerEntryCredit,
			Currency:    payment.Currency,
			Description: "booking payment",
			Metadata:    map[string]any{"payment_type": string(payment.PaymentType)},
		}, nil
	}, func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
		ok, err := s.payments.SetLedgerEntryID(ctx, tx, payment.ID, e.ID)
		if err != nil {
			return err
		}
		if !ok {
			// Another writer credited this payment first; roll back ours.
			return fmt.Errorf("%w: payment %s already credited", domain.ErrAlreadyExists, payment.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	payment.LedgerEntryID = &entry.ID
	return entry, nil
}

func (s *ledgerSvc) DebitForPayout(ctx context.Context, payout *model.ScheduledPayout) (*model.LedgerEntry, error) {
	if payout == nil || !payout.Amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return s.append(ctx, payout.ProviderID, func(ctx context.Context, tx repository.Tx, balance decimal.Decimal) (*model.LedgerEntry, error) {
		held, err := s.heldAmount(ctx, tx, payout.ProviderID)
		if err != nil {
			return nil, err
		}
		if balance.Sub(held).LessThan(payout.Amount) {
			return nil, domain.ErrInsufficientBalance
		}
		return &model.LedgerEntry{
			PayoutID:    &payout.ID,
			Amount:      payout.Amount,
			Type:        model.LedgerEntryDebit,
			Currency:    payout.Currency,
			Description: "scheduled payout",
		}, nil
	}, nil)
}

func (s *ledgerSvc) ReverseDebitForPayout(ctx context.Context, payout *model.ScheduledPayout, amount decimal.Decimal) (*model.LedgerEntry, error) {
	if payout == nil || !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return s.append(ctx, payout.ProviderID, func(_ context.Context, _ repository.Tx, _ decimal.Decimal) (*model.LedgerEntry, error) {
		return &model.LedgerEntry{
			PayoutID:    &payout.ID,
			Amount:      amount,
			Type:        model.LedgerEntryCredit,
			Currency:    payout.Currency,
			Description: "payout reversal",
			Metadata:    map[string]any{"payout_id": payout.ID, "reason": "disbursement failed"},
		}, nil
	}, nil)
}

func (s *ledgerSvc) DebitForRefund(ctx context.Context, payment *model.Payment, amount decimal.Decimal) (*model.LedgerEntry, error) {
	if payment == nil || !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return s.append(ctx, payment.ProviderID, func(_ context.Context, _ repository.Tx, _ decimal.Decimal) (*model.LedgerEntry, error) {
		return &model.LedgerEntry{
			PaymentID:   &payment.ID,
			BookingID:   strPtrOrNil(payment.BookingID),
			Amount:      amount,
			Type:        model.LedgerEntryDebit,
			Currency:    payment.Currency,
			Description: "refund",
		}, nil
	}, nil)
}

func (s *ledgerSvc) HoldFunds(ctx context.Context, providerID string, amount decimal.Decimal, reason string, bookingID *string) (*model.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return s.append(ctx, providerID, func(ctx context.Context, tx repository.Tx, balance decimal.Decimal) (*model.LedgerEntry, error) {
		provider, err := s.providers.FindByID(ctx, tx, providerID)
		if err != nil {
			return nil, err
		}
		held, err := s.heldAmount(ctx, tx, providerID)
		if err != nil {
			return nil, err
		}
		if balance.Sub(held).LessThan(amount) {
			return nil, domain.ErrInsufficientBalance
		}
		return &model.LedgerEntry{
			BookingID:   bookingID,
			Amount:      amount,
			Type:        model.LedgerEntryHold,
			Currency:    provider.Currency,
			Description: reason,
		}, nil
	}, nil)
}

func (s *ledgerSvc) ReleaseFunds(ctx context.Context, holdEntryID string) (*model.LedgerEntry, error) {
	hold, err := s.ledger.FindByID(ctx, nil, holdEntryID)
	if err != nil {
		return nil, err
	}
	if hold.Type != model.LedgerEntryHold {
		return nil, domain.ErrNotHoldEntry
	}
	return s.append(ctx, hold.ProviderID, func(ctx context.Context, tx repository.Tx, _ decimal.Decimal) (*model.LedgerEntry, error) {
		// Checked inside the transaction, before our own release is
		// inserted, so a concurrent double release cannot slip through.
		released, err := s.ledger.HasReleaseForHold(ctx, tx, hold.ID)
		if err != nil {
			return nil, err
		}
		if released {
			return nil, domain.ErrHoldAlreadyReleased
		}
		return &model.LedgerEntry{
			BookingID:   hold.BookingID,
			Amount:      hold.Amount,
			Type:        model.LedgerEntryRelease,
			Currency:    hold.Currency,
			Description: "release: " + hold.Description,
			Metadata:    map[string]any{"hold_entry_id": hold.ID},
		}, nil
	}, nil)
}

func (s *ledgerSvc) GetProviderBalance(ctx context.Context, providerID string) (decimal.Decimal, error) {
	last, err := s.ledger.LastEntry(ctx, nil, providerID)
	if err == domain.ErrNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return last.BalanceAfter, nil
}

func (s *ledgerSvc) GetHeldAmount(ctx context.Context, providerID string) (decimal.Decimal, error) {
	return s.heldAmount(ctx, nil, providerID)
}

// heldAmount is the point-in-time outstanding-holds figure:
// max(0, sum(holds) - sum(releases)).
func (s *ledgerSvc) heldAmount(ctx context.Context, tx repository.Tx, providerID string) (decimal.Decimal, error) {
	holds, err := s.ledger.SumByType(ctx, tx, providerID, model.LedgerEntryHold)
	if err != nil {
		return decimal.Zero, err
	}
	releases, err := s.ledger.SumByType(ctx, tx, providerID, model.LedgerEntryRelease)
	if err != nil {
		return decimal.Zero, err
	}
	held := holds.Sub(releases)
	if held.IsNegative() {
		return decimal.Zero, nil
	}
	return held, nil
}

func (s *ledgerSvc) GetAvailableBalance(ctx context.Context, providerID string) (decimal.Decimal, error) {
	total, err := s.GetProviderBalance(ctx, providerID)
	if err != nil {
		return decimal.Zero, err
	}
	held, err := s.GetHeldAmount(ctx, providerID)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Sub(held), nil
}

func (s *ledgerSvc) GetBalanceSummary(ctx context.Context, providerID string) (*model.BalanceSummary, error) {
	provider, err := s.providers.FindByID(ctx, nil, providerID)
	if err != nil {
		return nil, err
	}
	total, err := s.GetProviderBalance(ctx, providerID)
	if err != nil {
		return nil, err
	}
	held, err := s.GetHeldAmount(ctx, providerID)
	if err != nil {
		return nil, err
	}
	pending, err := s.payouts.SumScheduled(ctx, nil, providerID)
	if err != nil {
		return nil, err
	}
	return &model.BalanceSummary{
		Total:         total,
		Held:          held,
		Available:     total.Sub(held),
		PendingPayout: pending,
		Currency:      provider.Currency,
	}, nil
}

func (s *ledgerSvc) GetEarningsInRange(ctx context.Context, providerID string, from, to time.Time) (decimal.Decimal, error) {
	return s.ledger.SumCreditsInRange(ctx, nil, providerID, from, to)
}

func (s *ledgerSvc) GetStatement(ctx context.Context, providerID string, limit, offset int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.ledger.ListByProvider(ctx, nil, providerID, limit, offset)
}

func (s *ledgerSvc) CheckConsistency(ctx context.Context, providerID string) error {
	replayed, err := s.ledger.ReplayBalance(ctx, nil, providerID)
	if err != nil {
		return err
	}
	stored, err := s.GetProviderBalance(ctx, providerID)
	if err != nil {
		return err
	}
	if !replayed.Equal(stored) {
		return fmt.Errorf("ledger integrity violation for provider %s: replay=%s stored=%s", providerID, replayed, stored)
	}
	return nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
