package subscription

import (
	"github.com/shopspring/decimal"

	"zeen-connect/internal/config"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

var _ adapter.TierService = (*StaticTierService)(nil)

// StaticTierService serves the fee schedule straight from configuration.
// The subscription system owns tier assignment; this adapter only answers
// what each tier costs.
type StaticTierService struct {
	tiers map[model.Tier]tierPolicy
}

type tierPolicy struct {
	rate              decimal.Decimal
	depositMinimum    decimal.Decimal
	canDisableDeposit bool
}

func NewStaticTierService(cfg *config.FeesConfig) *StaticTierService {
	return &StaticTierService{
		tiers: map[model.Tier]tierPolicy{
			model.TierStarter: policyFrom(cfg.Starter),
			model.TierGrowth:  policyFrom(cfg.Growth),
			model.TierPremium: policyFrom(cfg.Premium),
		},
	}
}

func policyFrom(f config.TierFees) tierPolicy {
	return tierPolicy{
		rate:              decimal.NewFromFloat(f.Rate),
		depositMinimum:    decimal.NewFromFloat(f.DepositMinimum),
		canDisableDeposit: f.CanDisableDeposit,
	}
}

// FeeRate falls back to the starter (highest) rate for unknown tiers so a
// bad tier value can never undercharge.
func (s *StaticTierService) FeeRate(tier model.Tier) decimal.Decimal {
	if p, ok := s.tiers[tier]; ok {
		return p.rate
	}
	return s.tiers[model.TierStarter].rate
}

func (s *StaticTierService) DepositMinimum(tier model.Tier) decimal.Decimal {
	if p, ok := s.tiers[tier]; ok {
		return p.depositMinimum
	}
	return s.tiers[model.TierStarter].depositMinimum
}

func (s *StaticTierService) CanDisableDeposit(tier model.Tier) bool {
	return s.tiers[tier].canDisableDeposit
}
