package adapter

import (
	"context"

	"zeen-connect/internal/domain/model"
)

// DisbursementResult reports the outcome of moving money out to a provider.
type DisbursementResult struct {
	Success        bool
	DisbursementID string
	RawResponse    string
	ErrorMessage   string
}

// DisbursementGateway moves settled escrow funds to a provider's bank or
// merchant account. Consumed by the payout scheduler only.
type DisbursementGateway interface {
	Name() string
	Disburse(ctx context.Context, payout *model.ScheduledPayout) (DisbursementResult, error)
}
