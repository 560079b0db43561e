package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/config"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

var _ adapter.GatewayStrategy = (*WiPayEscrowGateway)(nil)

// WiPayEscrowGateway charges the client through the platform's own WiPay
// account. Funds land in platform custody and are credited to the provider
// ledger after completion.
type WiPayEscrowGateway struct {
	account     string
	apiKey      string
	countryCode string
	environment string
	baseURL     string
	http        *httpClient
}

func NewWiPayEscrowGateway(cfg *config.GatewaysConfig) *WiPayEscrowGateway {
	env := "live"
	baseURL := "https://tt.wipayfinancial.com/plugins/payments"
	if cfg.WiPay.Sandbox {
		env = "sandbox"
		baseURL = "https://sandbox.wipayfinancial.com/plugins/payments"
	}
	return &WiPayEscrowGateway{
		account:     cfg.WiPay.AccountNumber,
		apiKey:      cfg.WiPay.APIKey,
		countryCode: cfg.WiPay.CountryCode,
		environment: env,
		baseURL:     baseURL,
		http:        newHTTPClient(cfg),
	}
}

func (g *WiPayEscrowGateway) Name() string            { return "wipay" }
func (g *WiPayEscrowGateway) Type() model.GatewayType { return model.GatewayTypeEscrow }

type wipayRequestResponse struct {
	URL           string `json:"url"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

func (g *WiPayEscrowGateway) InitializePayment(ctx context.Context, p *model.Payment, returnURL, cancelURL string) (adapter.InitResult, error) {
	form := url.Values{
		"account_number": {g.account},
		"country_code":   {g.countryCode},
		"currency":       {p.Currency},
		"environment":    {g.environment},
		"fee_structure":  {"merchant_absorb"},
		"method":         {"credit_card"},
		"order_id":       {p.OrderID},
		"total":          {p.Amount.StringFixed(2)},
		"response_url":   {returnURL},
		"cancel_url":     {cancelURL},
	}

	body, err := g.http.postForm(ctx, g.baseURL+"/request", form)
	if err != nil {
		return adapter.InitResult{}, fmt.Errorf("wipay request: %w", err)
	}

	var res wipayRequestResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return adapter.InitResult{}, fmt.Errorf("wipay request: decode response: %w", err)
	}
	if res.URL == "" {
		return adapter.InitResult{}, fmt.Errorf("wipay request rejected: %s", res.Message)
	}
	return adapter.InitResult{RedirectURL: res.URL, SessionToken: res.TransactionID}, nil
}

// CompletePayment validates the callback signature and maps the gateway
// status. A failed status is terminal and reported as *adapter.GatewayError.
func (g *WiPayEscrowGateway) CompletePayment(ctx context.Context, p *model.Payment, data adapter.CallbackData) (adapter.PaymentResult, error) {
	txnID := data["transaction_id"]
	total := data["total"]
	if !verifyCallbackHash(data["hash"], txnID, total, g.apiKey) {
		return adapter.PaymentResult{}, &adapter.GatewayError{Code: "invalid_signature", Message: "callback hash mismatch"}
	}

	status := strings.ToLower(data["status"])
	if status != "success" {
		msg := data["message"]
		if msg == "" {
			msg = data["reasonDescription"]
		}
		return adapter.PaymentResult{}, &adapter.GatewayError{Code: statusCode(status, data), Message: msg}
	}

	brand, last4 := parseCard(data["card"])
	return adapter.PaymentResult{
		Success:       true,
		TransactionID: txnID,
		ResponseCode:  data["responseCode"],
		Message:       data["message"],
		CardBrand:     brand,
		CardLast4:     last4,
	}, nil
}

type wipayStatusResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	ResponseCode  string `json:"response_code"`
	Message       string `json:"message"`
	Card          string `json:"card"`
}

// VerifyPayment polls WiPay for the authoritative status of an order. A
// payment still pending at the gateway is returned as a plain error so the
// reconciliation sweep leaves it untouched.
func (g *WiPayEscrowGateway) VerifyPayment(ctx context.Context, p *model.Payment) (adapter.PaymentResult, error) {
	form := url.Values{
		"account_number": {g.account},
		"api_key":        {g.apiKey},
		"order_id":       {p.OrderID},
	}
	body, err := g.http.postForm(ctx, g.baseURL+"/status", form)
	if err != nil {
		return adapter.PaymentResult{}, fmt.Errorf("wipay status: %w", err)
	}

	var res wipayStatusResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return adapter.PaymentResult{}, fmt.Errorf("wipay status: decode response: %w", err)
	}
	switch strings.ToLower(res.Status) {
	case "success":
		brand, last4 := parseCard(res.Card)
		return adapter.PaymentResult{
			Success:       true,
			TransactionID: res.TransactionID,
			ResponseCode:  res.ResponseCode,
			Message:       res.Message,
			CardBrand:     brand,
			CardLast4:     last4,
		}, nil
	case "pending":
		return adapter.PaymentResult{}, fmt.Errorf("wipay status: order %s still pending", p.OrderID)
	default:
		return adapter.PaymentResult{
			Success:      false,
			ResponseCode: res.ResponseCode,
			Message:      res.Message,
		}, nil
	}
}

type wipayRefundResponse struct {
	Status   string `json:"status"`
	RefundID string `json:"refund_id"`
	Message  string `json:"message"`
}

func (g *WiPayEscrowGateway) Refund(ctx context.Context, p *model.Payment, amount *decimal.Decimal) (adapter.RefundResult, error) {
	total := p.Amount
	if amount != nil {
		total = *amount
	}
	form := url.Values{
		"account_number": {g.account},
		"api_key":        {g.apiKey},
		"transaction_id": {p.TransactionID},
		"total":          {total.StringFixed(2)},
	}
	body, err := g.http.postForm(ctx, g.baseURL+"/refund", form)
	if err != nil {
		return adapter.RefundResult{}, fmt.Errorf("wipay refund: %w", err)
	}

	var res wipayRefundResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return adapter.RefundResult{}, fmt.Errorf("wipay refund: decode response: %w", err)
	}
	if !strings.EqualFold(res.Status, "success") {
		return adapter.RefundResult{Message: res.Message}, &adapter.GatewayError{Code: "refund_rejected", Message: res.Message}
	}
	return adapter.RefundResult{Success: true, RefundID: res.RefundID, Message: res.Message}, nil
}

// verifyCallbackHash checks WiPay's MD5 signature over transaction id, total
// and the account API key.
func verifyCallbackHash(got, txnID, total, apiKey string) bool {
	sum := md5.Sum([]byte(txnID + total + apiKey))
	return got != "" && strings.EqualFold(got, hex.EncodeToString(sum[:]))
}

// parseCard splits WiPay's card description, e.g. "VISA ... 4242".
func parseCard(card string) (brand, last4 string) {
	card = strings.TrimSpace(card)
	if card == "" {
		return "", ""
	}
	fields := strings.Fields(card)
	brand = fields[0]
	tail := fields[len(fields)-1]
	if len(tail) >= 4 {
		last4 = tail[len(tail)-4:]
	}
	return brand, last4
}

func statusCode(status string, data adapter.CallbackData) string {
	if code := data["responseCode"]; code != "" {
		return code
	}
	if status == "" {
		return "unknown"
	}
	return status
}
