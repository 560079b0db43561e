package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain/model"
)

type LedgerRepository interface {
	// Insert appends one entry. Entries are never updated or deleted.
	Insert(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.LedgerEntry, error)

	// LastEntry returns the provider's most recent entry by insertion order
	// (ULID identity breaks ties). domain.ErrNotFound when the ledger is
	// empty.
	LastEntry(ctx context.Context, tx Tx, providerID string) (*model.LedgerEntry, error)

	SumByType(ctx context.Context, tx Tx, providerID string, t model.LedgerEntryType) (decimal.Decimal, error)
	// HasReleaseForHold reports whether a release entry already references
	// the given hold entry.
	HasReleaseForHold(ctx context.Context, tx Tx, holdEntryID string) (bool, error)

	ListByProvider(ctx context.Context, tx Tx, providerID string, limit, offset int) ([]*model.LedgerEntry, error)
	SumCreditsInRange(ctx context.Context, tx Tx, providerID string, from, to time.Time) (decimal.Decimal, error)

	// ReplayBalance recomputes the balance from all entries; used only as a
	// consistency check against LastEntry().BalanceAfter.
	ReplayBalance(ctx context.Context, tx Tx, providerID string) (decimal.Decimal, error)
}
