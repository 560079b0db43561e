package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositType is a service-level deposit override.
type DepositType string

const (
	DepositTypeNone       DepositType = "none"       // service opts out of deposits
	DepositTypePercentage DepositType = "percentage" // service sets its own percentage
)

// Service is the bookable offering. Only the deposit settings matter to the
// payment engine.
type Service struct {
	ID         string
	ProviderID string
	Name       string

	DepositType       DepositType
	DepositPercentage decimal.Decimal // used when DepositType is percentage
}

// StoredFees are the fee fields persisted on a booking when it was charged.
// Once present they are authoritative: a booking's charged amount never
// drifts when platform rates change after creation.
type StoredFees struct {
	ZeenFee           decimal.Decimal
	GatewayFee        decimal.Decimal
	ConvenienceFee    decimal.Decimal
	DepositAmount     decimal.Decimal
	DepositPercentage decimal.Decimal
	RequiresDeposit   bool
	FeePayer          FeePayer
	ZeenRate          decimal.Decimal
	GatewayRate       decimal.Decimal
	Tier              Tier
}

// Booking references the appointment being paid for.
type Booking struct {
	ID         string
	ProviderID string
	ClientID   string
	ServiceID  string

	ServicePrice decimal.Decimal
	Currency     string

	Fees *StoredFees // nil until the booking has been charged

	CreatedAt time.Time
}
