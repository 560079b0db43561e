package repository

import (
	"context"

	"zeen-connect/internal/domain/model"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Provider, error)

	// LockForLedger takes the provider's row lock inside the given
	// transaction. This is the explicit per-provider serialization point for
	// ledger writes; it must be called with a live transaction handle.
	LockForLedger(ctx context.Context, tx Tx, providerID string) error

	// ListEscrowSettled returns providers whose payments settle through
	// platform escrow, i.e. providers without an active verified
	// split-capable merchant account. Only these accumulate ledger balance.
	ListEscrowSettled(ctx context.Context, tx Tx) ([]*model.Provider, error)
}
