package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/config"
	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/usecase"
)

var _ adapter.SplitGateway = (*WiPaySplitGateway)(nil)

// WiPaySplitGateway charges through a provider's own WiPay merchant account
// and divides the proceeds at the processor. Split payments never touch the
// platform ledger.
//
// Callback verification and status polling run against the platform account,
// so an instance with empty merchant credentials is still usable for webhook
// routing by name.
type WiPaySplitGateway struct {
	escrow *WiPayEscrowGateway

	merchantID         string
	merchantAPIKey     string
	platformMerchantID string
}

// NewWiPaySplitGateway binds a split strategy to one provider's merchant
// account.
func NewWiPaySplitGateway(cfg *config.GatewaysConfig, merchantID, merchantAPIKey string) *WiPaySplitGateway {
	return &WiPaySplitGateway{
		escrow:             NewWiPayEscrowGateway(cfg),
		merchantID:         merchantID,
		merchantAPIKey:     merchantAPIKey,
		platformMerchantID: cfg.WiPay.PlatformMerchantID,
	}
}

// NewWiPaySplitFactory is the resolver hook: one strategy instance per
// provider, built from decrypted merchant credentials.
func NewWiPaySplitFactory(cfg *config.GatewaysConfig) usecase.SplitFactory {
	return func(merchantID, apiKey string) (adapter.SplitGateway, error) {
		if merchantID == "" {
			return nil, fmt.Errorf("wipay split: %w: empty merchant id", domain.ErrInvalidArgument)
		}
		return NewWiPaySplitGateway(cfg, merchantID, apiKey), nil
	}
}

func (g *WiPaySplitGateway) Name() string            { return "wipay-split" }
func (g *WiPaySplitGateway) Type() model.GatewayType { return model.GatewayTypeSplit }

func (g *WiPaySplitGateway) PlatformMerchantID() string { return g.platformMerchantID }

// ConfigureSplit validates and attaches the division before initialization.
func (g *WiPaySplitGateway) ConfigureSplit(p *model.Payment, split model.SplitDetails) error {
	if split.ProviderMerchantID == "" || split.PlatformMerchantID == "" {
		return fmt.Errorf("wipay split: %w: merchant ids are required", domain.ErrInvalidArgument)
	}
	if split.AmountToProvider.IsNegative() || split.AmountToPlatform.IsNegative() {
		return fmt.Errorf("wipay split: %w: negative split amount", domain.ErrInvalidArgument)
	}
	if !split.AmountToProvider.Add(split.AmountToPlatform).Equal(p.Amount) {
		return fmt.Errorf("wipay split: %w: split does not sum to charge amount", domain.ErrInvalidArgument)
	}
	p.SplitDetails = &split
	return nil
}

func (g *WiPaySplitGateway) InitializePayment(ctx context.Context, p *model.Payment, returnURL, cancelURL string) (adapter.InitResult, error) {
	if p.SplitDetails == nil {
		return adapter.InitResult{}, fmt.Errorf("wipay split: %w: split not configured", domain.ErrInvalidArgument)
	}
	recipients, err := json.Marshal([]map[string]string{
		{"account": p.SplitDetails.ProviderMerchantID, "total": p.SplitDetails.AmountToProvider.StringFixed(2)},
		{"account": p.SplitDetails.PlatformMerchantID, "total": p.SplitDetails.AmountToPlatform.StringFixed(2)},
	})
	if err != nil {
		return adapter.InitResult{}, fmt.Errorf("wipay split: encode recipients: %w", err)
	}

	form := url.Values{
		"account_number": {g.merchantID},
		"api_key":        {g.merchantAPIKey},
		"country_code":   {g.escrow.countryCode},
		"currency":       {p.Currency},
		"environment":    {g.escrow.environment},
		"fee_structure":  {"merchant_absorb"},
		"method":         {"credit_card"},
		"order_id":       {p.OrderID},
		"total":          {p.Amount.StringFixed(2)},
		"recipients":     {string(recipients)},
		"response_url":   {returnURL},
		"cancel_url":     {cancelURL},
	}

	body, err := g.escrow.http.postForm(ctx, g.escrow.baseURL+"/request", form)
	if err != nil {
		return adapter.InitResult{}, fmt.Errorf("wipay split request: %w", err)
	}
	var res wipayRequestResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return adapter.InitResult{}, fmt.Errorf("wipay split request: decode response: %w", err)
	}
	if res.URL == "" {
		return adapter.InitResult{}, fmt.Errorf("wipay split request rejected: %s", res.Message)
	}
	return adapter.InitResult{RedirectURL: res.URL, SessionToken: res.TransactionID}, nil
}

func (g *WiPaySplitGateway) CompletePayment(ctx context.Context, p *model.Payment, data adapter.CallbackData) (adapter.PaymentResult, error) {
	res, err := g.escrow.CompletePayment(ctx, p, data)
	if err != nil {
		return res, err
	}
	res.SplitDetails = p.SplitDetails
	return res, nil
}

func (g *WiPaySplitGateway) VerifyPayment(ctx context.Context, p *model.Payment) (adapter.PaymentResult, error) {
	res, err := g.escrow.VerifyPayment(ctx, p)
	if err != nil {
		return res, err
	}
	if res.Success {
		res.SplitDetails = p.SplitDetails
	}
	return res, nil
}

func (g *WiPaySplitGateway) Refund(ctx context.Context, p *model.Payment, amount *decimal.Decimal) (adapter.RefundResult, error) {
	return g.escrow.Refund(ctx, p, amount)
}
