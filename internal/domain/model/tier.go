package model

// Tier is the provider's subscription level, supplied by the subscription
// system. Ordering matters: the cheapest tier pays the highest platform fee
// rate (the inverse relationship is the tier system's core incentive).
type Tier string

const (
	TierStarter Tier = "starter" // cheapest tier, highest fee rate
	TierGrowth  Tier = "growth"
	TierPremium Tier = "premium" // top tier, lowest fee rate
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierStarter, TierGrowth, TierPremium:
		return true
	}
	return false
}
