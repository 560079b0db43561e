package model

import (
	"time"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // created; awaiting gateway redirect/3DS
	PaymentStatusProcessing PaymentStatus = "processing" // callback received; completion in flight
	PaymentStatusCompleted  PaymentStatus = "completed"  // confirmed by gateway
	PaymentStatusFailed     PaymentStatus = "failed"     // declined or terminal gateway error
	PaymentStatusRefunded   PaymentStatus = "refunded"   // refunded after completion
)

// GatewayType distinguishes the two settlement models. Escrow funds pass
// through platform custody and are credited to the provider ledger; split
// funds are divided at the processor and never touch the ledger.
type GatewayType string

const (
	GatewayTypeEscrow GatewayType = "escrow"
	GatewayTypeSplit  GatewayType = "split"
)

// SplitDetails is set only for split-gateway payments, before gateway
// initialization.
type SplitDetails struct {
	ProviderMerchantID string          `json:"provider_merchant_id"`
	PlatformMerchantID string          `json:"platform_merchant_id"`
	AmountToProvider   decimal.Decimal `json:"amount_to_provider"`
	AmountToPlatform   decimal.Decimal `json:"amount_to_platform"`
}

// Payment records one payment's lifecycle. Created by the payment manager at
// initialization and mutated only by it; never deleted.
type Payment struct {
	ID         string
	BookingID  string
	ClientID   string
	ProviderID string

	Amount         decimal.Decimal // amount charged to the client
	PlatformFee    decimal.Decimal
	ProviderAmount decimal.Decimal // what the provider is owed from this payment
	Currency       string
	PaymentType    PaymentType

	Gateway     string // gateway name, e.g. "wipay"
	GatewayType GatewayType

	OrderID       string // our reference sent to the gateway
	TransactionID string // gateway transaction id, set on completion
	Status        PaymentStatus

	CardBrand string
	CardLast4 string

	SplitDetails *SplitDetails

	// LedgerEntryID links the credit posted for this payment. Set exactly
	// once, and only for escrow-gateway payments.
	LedgerEntryID *string

	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// CanTransition reports whether moving to the given status is a legal
// one-way transition. Failed and refunded payments are never resurrected.
func (p *Payment) CanTransition(to PaymentStatus) bool {
	switch p.Status {
	case PaymentStatusPending:
		return to == PaymentStatusProcessing || to == PaymentStatusFailed
	case PaymentStatusProcessing:
		return to == PaymentStatusCompleted || to == PaymentStatusFailed
	case PaymentStatusCompleted:
		return to == PaymentStatusRefunded
	}
	return false
}

// Transition applies a status change after validating it.
func (p *Payment) Transition(to PaymentStatus, now time.Time) error {
	if !p.CanTransition(to) {
		return domain.ErrInvalidStatusChange
	}
	p.Status = to
	p.UpdatedAt = now
	if to == PaymentStatusCompleted {
		t := now
		p.CompletedAt = &t
	}
	return nil
}
