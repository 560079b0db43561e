// File: internal/usecase/fees_uc.go
package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

// Compile-time check
var _ FeeCalculator = (*feeCalc)(nil)

// FeeCalculator computes platform fee, gateway fee, deposit and the
// client/provider money split for a booking. Pure computation, no I/O.
type FeeCalculator interface {
	// CalculateFees resolves the full fee breakdown. When the booking
	// already carries stored fee fields they are returned verbatim
	// (source=stored): a booking's charged amount never drifts when
	// platform rates change after creation.
	CalculateFees(provider *model.Provider, servicePrice decimal.Decimal, service *model.Service, booking *model.Booking) model.FeeResult
	// CalculateDepositAmount returns the effective deposit amount and
	// percentage for a service under the provider's tier floor.
	CalculateDepositAmount(provider *model.Provider, servicePrice decimal.Decimal, service *model.Service) (decimal.Decimal, decimal.Decimal)
	// PaymentFees maps the booking-level fee result onto one payment leg.
	PaymentFees(fees model.FeeResult, paymentType model.PaymentType) model.PaymentFees
}

type feeCalc struct {
	tiers       adapter.TierService
	gatewayRate decimal.Decimal
	now         func() time.Time
}

func NewFeeCalculator(tiers adapter.TierService, gatewayRate decimal.Decimal) *feeCalc {
	return &feeCalc{tiers: tiers, gatewayRate: gatewayRate, now: time.Now}
}

func (c *feeCalc) CalculateFees(provider *model.Provider, servicePrice decimal.Decimal, service *model.Service, booking *model.Booking) model.FeeResult {
	if booking != nil && booking.Fees != nil {
		return c.storedFees(servicePrice, booking.Fees)
	}
	return c.freshFees(provider, servicePrice, service)
}

// storedFees reassembles a FeeResult from a booking's persisted fee fields
// without consulting current rates.
func (c *feeCalc) storedFees(servicePrice decimal.Decimal, f *model.StoredFees) model.FeeResult {
	r := model.FeeResult{
		ServicePrice:      servicePrice,
		ZeenFee:           f.ZeenFee,
		GatewayFee:        f.GatewayFee,
		TotalFees:         model.Round2(f.ZeenFee.Add(f.GatewayFee)),
		ConvenienceFee:    f.ConvenienceFee,
		FeePayer:          f.FeePayer,
		DepositAmount:     f.DepositAmount,
		DepositPercentage: f.DepositPercentage,
		RequiresDeposit:   f.RequiresDeposit,
		Tier:              f.Tier,
		Source:            model.FeeSourceStored,
		Rates: model.FeeRates{
			Zeen:    f.ZeenRate,
			Gateway: f.GatewayRate,
			Total:   f.ZeenRate.Add(f.GatewayRate),
		},
	}
	return c.compose(r)
}

func (c *feeCalc) freshFees(provider *model.Provider, servicePrice decimal.Decimal, service *model.Service) model.FeeResult {
	zeenRate := decimal.Zero
	if !provider.HasActiveFeeWaiver(c.now()) {
		zeenRate = c.tiers.FeeRate(provider.Tier)
	}

	depositAmount, depositPct := c.CalculateDepositAmount(provider, servicePrice, service)

	r := model.FeeResult{
		ServicePrice:      servicePrice,
		ZeenFee:           model.Percent(servicePrice, zeenRate),
		FeePayer:          provider.FeePayer,
		DepositAmount:     depositAmount,
		DepositPercentage: depositPct,
		RequiresDeposit:   depositPct.IsPositive(),
		Tier:              provider.Tier,
		Source:            model.FeeSourceCalculated,
		Rates: model.FeeRates{
			Zeen:    zeenRate,
			Gateway: c.gatewayRate,
			Total:   zeenRate.Add(c.gatewayRate),
		},
	}
	return c.compose(r)
}

// compose fills the derived charge fields from the component fees. The
// gateway collects its cut on top of the platform's cut, so the gateway fee
// base is chargeAmount + platform fee; this compounding mirrors the
// processor's real settlement math.
func (c *feeCalc) compose(r model.FeeResult) model.FeeResult {
	charge := r.ChargeAmount()
	r.ProcessingBase = model.Round2(charge.Add(r.ZeenFee))
	if r.Source != model.FeeSourceStored {
		r.GatewayFee = model.Percent(r.ProcessingBase, r.Rates.Gateway)
		r.TotalFees = model.Round2(r.ZeenFee.Add(r.GatewayFee))
	}

	switch r.FeePayer {
	case model.FeePayerClient:
		// Fees are surcharged on top; the provider keeps the full price.
		if r.Source != model.FeeSourceStored {
			r.ConvenienceFee = r.TotalFees
		}
		r.ClientPays = model.Round2(charge.Add(r.TotalFees))
		r.ProviderReceives = r.ServicePrice
	default:
		// Fees come out of the provider's side; the client pays the charge.
		if r.Source != model.FeeSourceStored {
			r.ConvenienceFee = decimal.Zero
		}
		r.ClientPays = charge
		r.ProviderReceives = model.Round2(r.ServicePrice.Sub(r.TotalFees))
	}
	r.AmountToGateway = r.ClientPays
	return r
}

// CalculateDepositAmount is the single deposit decision: effective deposit
// percentage = max(tier floor, service override), where "no deposit" is only
// honored for tiers allowed to disable deposits and otherwise silently falls
// back to the tier default.
func (c *feeCalc) CalculateDepositAmount(provider *model.Provider, servicePrice decimal.Decimal, service *model.Service) (decimal.Decimal, decimal.Decimal) {
	pct := c.effectiveDepositPercent(provider, service)
	return model.Percent(servicePrice, pct), pct
}

func (c *feeCalc) effectiveDepositPercent(provider *model.Provider, service *model.Service) decimal.Decimal {
	tierMin := c.tiers.DepositMinimum(provider.Tier)
	if service == nil {
		return tierMin
	}
	switch service.DepositType {
	case model.DepositTypeNone:
		if c.tiers.CanDisableDeposit(provider.Tier) {
			return decimal.Zero
		}
		return tierMin
	case model.DepositTypePercentage:
		return decimal.Max(service.DepositPercentage, tierMin)
	default:
		return tierMin
	}
}

// PaymentFees: a balance payment (the remainder after a deposit) carries no
// platform fee component, only a gateway fee on the remaining base. Deposit
// and full payments reuse the booking-level split.
func (c *feeCalc) PaymentFees(fees model.FeeResult, paymentType model.PaymentType) model.PaymentFees {
	if paymentType == model.PaymentTypeBalance {
		base := model.Round2(fees.ServicePrice.Sub(fees.DepositAmount))
		gw := model.Percent(base, fees.Rates.Gateway)
		return model.PaymentFees{PlatformFee: decimal.Zero, GatewayFee: gw, Total: gw}
	}
	return model.PaymentFees{PlatformFee: fees.ZeenFee, GatewayFee: fees.GatewayFee, Total: fees.TotalFees}
}
