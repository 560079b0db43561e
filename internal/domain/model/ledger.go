package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntryType classifies an append-only ledger movement. Amounts are
// always stored as positive magnitudes; the type carries the sign.
type LedgerEntryType string

const (
	LedgerEntryCredit  LedgerEntryType = "credit"  // balance += amount
	LedgerEntryDebit   LedgerEntryType = "debit"   // balance -= amount
	LedgerEntryHold    LedgerEntryType = "hold"    // balance -= amount, releasable
	LedgerEntryRelease LedgerEntryType = "release" // balance += amount, must reference a hold
)

// Sign returns +1 or -1 per the type's balance convention.
func (t LedgerEntryType) Sign() int {
	switch t {
	case LedgerEntryCredit, LedgerEntryRelease:
		return 1
	default:
		return -1
	}
}

// LedgerEntry is the system of record for provider balances. Entries are
// never mutated or deleted. IDs are ULIDs, so lexical order follows
// insertion order and ties break on identity.
type LedgerEntry struct {
	ID         string
	ProviderID string
	BookingID  *string
	PaymentID  *string
	PayoutID   *string

	Amount       decimal.Decimal // positive magnitude
	Type         LedgerEntryType
	BalanceAfter decimal.Decimal
	Currency     string

	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Apply computes the balance after this entry given the previous balance.
func (e *LedgerEntry) Apply(previous decimal.Decimal) decimal.Decimal {
	if e.Type.Sign() > 0 {
		return previous.Add(e.Amount)
	}
	return previous.Sub(e.Amount)
}

// BalanceSummary is the derived financial posture of a provider.
type BalanceSummary struct {
	Total         decimal.Decimal `json:"total"`
	Available     decimal.Decimal `json:"available"`
	Held          decimal.Decimal `json:"held"`
	PendingPayout decimal.Decimal `json:"pending_payout"`
	Currency      string          `json:"currency"`
}
