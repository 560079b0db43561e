package model

import "time"

// MerchantAccount is a provider's linked merchant configuration at a payment
// gateway. Credentials are stored encrypted (AES-GCM) and decrypted only
// when a split strategy is instantiated.
type MerchantAccount struct {
	ID         string
	ProviderID string
	Gateway    string // gateway name the account belongs to

	MerchantID           string // public merchant identifier at the gateway
	EncryptedCredentials string // base64(nonce || ciphertext) of the API key

	SupportsSplit bool
	Verified      bool
	Active        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Eligible reports whether this account qualifies the provider for direct
// split settlement.
func (m *MerchantAccount) Eligible() bool {
	return m.Active && m.Verified && m.SupportsSplit
}

// Provider is the payee side of the marketplace: a salon, spa or studio.
type Provider struct {
	ID       string
	Name     string
	Tier     Tier
	Currency string

	// FeePayer is the provider's fee attribution setting: surcharge the
	// client or absorb fees out of the payout.
	FeePayer FeePayer

	// FeeWaiverUntil, when set and in the future, zeroes the platform fee.
	FeeWaiverUntil *time.Time

	Merchant *MerchantAccount // nil when no merchant account is linked

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveFeeWaiver reports whether the platform fee is waived at t.
func (p *Provider) HasActiveFeeWaiver(t time.Time) bool {
	return p.FeeWaiverUntil != nil && p.FeeWaiverUntil.After(t)
}

// UsesSplitSettlement reports whether payments for this provider settle via
// direct split at the processor instead of platform escrow.
func (p *Provider) UsesSplitSettlement() bool {
	return p.Merchant != nil && p.Merchant.Eligible()
}
