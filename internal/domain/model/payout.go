package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

// Terminal reports whether the status can no longer change. A failed payout
// is not terminal for accounting purposes (it may be retried via a new row)
// but its own row never leaves failed except to cancelled.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusCancelled
}

// ScheduledPayout is a planned disbursement of a provider's escrow balance.
// Rows are never hard-deleted; cancellation is a status transition, and a
// retry creates a new row referencing the failed original so the audit trail
// survives.
type ScheduledPayout struct {
	ID         string
	ProviderID string
	Amount     decimal.Decimal
	Currency   string

	ScheduledFor time.Time
	Status       PayoutStatus
	BatchID      *string

	ProcessedAt *time.Time
	ProcessedBy string // "scheduler" or an admin identifier

	PayoutMethod    string // e.g. "bank_transfer"
	ReferenceNumber string
	DisbursementID  string
	DisbursementRes string

	RetryOfID     *string // original payout when this row is a retry
	FailureReason string
	Notes         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanBeCancelled: only payouts not yet picked up for processing.
func (p *ScheduledPayout) CanBeCancelled() bool {
	return p.Status == PayoutStatusPending || p.Status == PayoutStatusFailed
}

// CanBeRetried: only failed payouts. Retrying never mutates this row.
func (p *ScheduledPayout) CanBeRetried() bool {
	return p.Status == PayoutStatusFailed
}

// BatchResult reports the outcome of bulk payout processing. Individual
// failures are counted, never propagated.
type BatchResult struct {
	BatchID   string `json:"batch_id,omitempty"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}
