package repository

import (
	"context"
	"time"

	"zeen-connect/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByOrderID looks a payment up by the order reference we sent to the
	// gateway; used by webhook callback routing.
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)

	// UpdateStatusIf atomically moves a payment from one of the given
	// statuses to `to`, returning false when the guard did not match. This is
	// the duplicate-webhook-delivery protection.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from []model.PaymentStatus, to model.PaymentStatus, transactionID *string, completedAt *time.Time, failureReason *string) (bool, error)

	// SetLedgerEntryID links the credit entry to the payment. The link is
	// written only when currently null; returns false if already set.
	SetLedgerEntryID(ctx context.Context, tx Tx, paymentID, entryID string) (bool, error)

	// ListProcessingOlderThan feeds the reconciliation sweep.
	ListProcessingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
