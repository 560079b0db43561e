package adapter

import (
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain/model"
)

// TierService is the contract consumed from the subscription system: fee
// rates and deposit policy per tier. Rates are percentages.
//
// The rate mapping must preserve the inverse relationship between tier price
// and fee rate: the cheapest tier pays the highest platform fee. Unmapped
// tiers are a programming error caught by tests, not a runtime condition.
type TierService interface {
	FeeRate(tier model.Tier) decimal.Decimal
	DepositMinimum(tier model.Tier) decimal.Decimal
	// CanDisableDeposit is true only for the top tier.
	CanDisableDeposit(tier model.Tier) bool
}
