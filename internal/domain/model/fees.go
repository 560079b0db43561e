package model

import "github.com/shopspring/decimal"

type FeePayer string

const (
	FeePayerClient   FeePayer = "client"
	FeePayerProvider FeePayer = "provider"
)

// FeeSource records whether a FeeResult was recomputed or read back from a
// booking's stored fee fields.
type FeeSource string

const (
	FeeSourceStored     FeeSource = "stored"
	FeeSourceCalculated FeeSource = "calculated"
)

type PaymentType string

const (
	PaymentTypeFull    PaymentType = "full"
	PaymentTypeDeposit PaymentType = "deposit"
	PaymentTypeBalance PaymentType = "balance"
)

// FeeRates holds the percentage rates a FeeResult was computed from.
type FeeRates struct {
	Zeen    decimal.Decimal `json:"zeen"`
	Gateway decimal.Decimal `json:"gateway"`
	Total   decimal.Decimal `json:"total"`
}

// FeeResult is the immutable outcome of a fee calculation for one booking.
// Invariant: TotalFees = ZeenFee + GatewayFee.
type FeeResult struct {
	ServicePrice   decimal.Decimal `json:"service_price"`
	ZeenFee        decimal.Decimal `json:"zeen_fee"`
	GatewayFee     decimal.Decimal `json:"gateway_fee"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	ConvenienceFee decimal.Decimal `json:"convenience_fee"`
	Rates          FeeRates        `json:"rates"`
	FeePayer       FeePayer        `json:"fee_payer"`

	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	DepositPercentage decimal.Decimal `json:"deposit_percentage"`
	RequiresDeposit   bool            `json:"requires_deposit"`

	ClientPays       decimal.Decimal `json:"client_pays"`
	ProviderReceives decimal.Decimal `json:"provider_receives"`
	AmountToGateway  decimal.Decimal `json:"amount_to_gateway"`
	ProcessingBase   decimal.Decimal `json:"processing_base"`

	Tier   Tier      `json:"tier"`
	Source FeeSource `json:"source"`
}

// ChargeAmount is what the client is charged at checkout: the deposit when
// one is required, otherwise the full service price.
func (f FeeResult) ChargeAmount() decimal.Decimal {
	if f.RequiresDeposit {
		return f.DepositAmount
	}
	return f.ServicePrice
}

// PaymentFees is the fee split applied to one payment of a given type.
// A balance payment carries no platform fee: the platform's cut was already
// collected against the deposit leg. Whether rounding on the deposit leg can
// under-collect is left as-is from the settlement math upstream.
type PaymentFees struct {
	PlatformFee decimal.Decimal `json:"platform_fee"`
	GatewayFee  decimal.Decimal `json:"gateway_fee"`
	Total       decimal.Decimal `json:"total"`
}
