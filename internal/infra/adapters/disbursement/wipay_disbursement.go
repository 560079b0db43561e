package disbursement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"zeen-connect/internal/config"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

var _ adapter.DisbursementGateway = (*WiPayDisbursement)(nil)

// WiPayDisbursement pushes settled escrow funds out through WiPay's payout
// API. Calls are not retried here: the payout scheduler compensates a failed
// disbursement and marks the payout failed, and a blind retry could pay a
// provider twice.
type WiPayDisbursement struct {
	account string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWiPayDisbursement(cfg *config.GatewaysConfig) *WiPayDisbursement {
	baseURL := "https://tt.wipayfinancial.com/plugins/payouts"
	if cfg.WiPay.Sandbox {
		baseURL = "https://sandbox.wipayfinancial.com/plugins/payouts"
	}
	return &WiPayDisbursement{
		account: cfg.WiPay.AccountNumber,
		apiKey:  cfg.WiPay.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *WiPayDisbursement) Name() string { return "wipay" }

type wipayPayoutRequest struct {
	AccountNumber string `json:"account_number"`
	APIKey        string `json:"api_key"`
	RecipientID   string `json:"recipient_id"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	Reference     string `json:"reference"`
}

type wipayPayoutResponse struct {
	Status   string `json:"status"`
	PayoutID string `json:"payout_id"`
	Message  string `json:"message"`
}

func (d *WiPayDisbursement) Disburse(ctx context.Context, payout *model.ScheduledPayout) (adapter.DisbursementResult, error) {
	reqBody, err := json.Marshal(wipayPayoutRequest{
		AccountNumber: d.account,
		APIKey:        d.apiKey,
		RecipientID:   payout.ProviderID,
		Total:         payout.Amount.StringFixed(2),
		Currency:      payout.Currency,
		Method:        payout.PayoutMethod,
		Reference:     payout.ReferenceNumber,
	})
	if err != nil {
		return adapter.DisbursementResult{}, fmt.Errorf("wipay payout: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/request", bytes.NewReader(reqBody))
	if err != nil {
		return adapter.DisbursementResult{}, fmt.Errorf("wipay payout: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return adapter.DisbursementResult{}, fmt.Errorf("wipay payout: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.DisbursementResult{}, fmt.Errorf("wipay payout: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return adapter.DisbursementResult{
			RawResponse:  string(body),
			ErrorMessage: fmt.Sprintf("wipay payout returned status %d", resp.StatusCode),
		}, nil
	}

	var res wipayPayoutResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return adapter.DisbursementResult{}, fmt.Errorf("wipay payout: decode response: %w", err)
	}
	if !strings.EqualFold(res.Status, "success") {
		return adapter.DisbursementResult{
			RawResponse:  string(body),
			ErrorMessage: res.Message,
		}, nil
	}
	return adapter.DisbursementResult{
		Success:        true,
		DisbursementID: res.PayoutID,
		RawResponse:    string(body),
	}, nil
}
