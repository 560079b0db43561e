package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain/model"
)

type PayoutRepository interface {
	Save(ctx context.Context, tx Tx, p *model.ScheduledPayout) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ScheduledPayout, error)

	// HasOpenPayout reports whether the provider already has a pending or
	// processing payout; schedulePayouts must not create a second one.
	HasOpenPayout(ctx context.Context, tx Tx, providerID string) (bool, error)

	// SumScheduled totals pending and processing payout amounts for the
	// provider (the pending-payout figure of the balance summary). Failed
	// rows are excluded: their debit was never applied or was reversed.
	SumScheduled(ctx context.Context, tx Tx, providerID string) (decimal.Decimal, error)

	// ListDue returns payouts whose scheduled_for has passed and whose
	// status is pending, oldest first.
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.ScheduledPayout, error)

	// MarkProcessing conditionally moves pending -> processing; false when
	// another worker won the race.
	MarkProcessing(ctx context.Context, tx Tx, id string) (bool, error)

	ListPendingUnbatched(ctx context.Context, tx Tx, limit int) ([]*model.ScheduledPayout, error)
	AssignBatch(ctx context.Context, tx Tx, ids []string, batchID string) error
	ListByBatch(ctx context.Context, tx Tx, batchID string) ([]*model.ScheduledPayout, error)
}
