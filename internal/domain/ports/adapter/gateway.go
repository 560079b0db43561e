package adapter

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain/model"
)

// CallbackData is the provider-specific payload delivered to our webhook on
// payment completion (form fields or query params, gateway-dependent).
type CallbackData map[string]string

// InitResult is returned by payment initialization: where to send the client
// and the gateway session token to correlate the callback.
type InitResult struct {
	RedirectURL  string
	SessionToken string
}

// PaymentResult captures a completion or verification outcome.
type PaymentResult struct {
	Success       bool
	TransactionID string
	ResponseCode  string
	Message       string
	CardBrand     string
	CardLast4     string
	// SplitDetails echoes the processor-side split for split gateways.
	SplitDetails *model.SplitDetails
}

type RefundResult struct {
	Success  bool
	RefundID string
	Message  string
}

// GatewayError is a terminal gateway failure (declined, insufficient funds).
// Transport-level failures are plain errors and retried by the HTTP client;
// a GatewayError is never retried.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// GatewayStrategy is the hex port for payment gateways. Two settlement
// models exist behind it: escrow (platform custody, ledger-credited) and
// split (divided at the processor).
type GatewayStrategy interface {
	Name() string
	Type() model.GatewayType

	// InitializePayment creates the gateway session and returns a redirect.
	InitializePayment(ctx context.Context, p *model.Payment, returnURL, cancelURL string) (InitResult, error)
	// CompletePayment finalizes the payment from callback data.
	CompletePayment(ctx context.Context, p *model.Payment, data CallbackData) (PaymentResult, error)
	// VerifyPayment polls the gateway for the payment's real status; used by
	// the reconciliation sweep when a callback was lost.
	VerifyPayment(ctx context.Context, p *model.Payment) (PaymentResult, error)
	// Refund refunds the full amount when amount is nil.
	Refund(ctx context.Context, p *model.Payment, amount *decimal.Decimal) (RefundResult, error)
}

// SplitGateway is implemented by strategies that divide funds at the
// processor. ConfigureSplit must be called before InitializePayment.
type SplitGateway interface {
	GatewayStrategy
	ConfigureSplit(p *model.Payment, split model.SplitDetails) error
	PlatformMerchantID() string
}
