//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

func authedServer(pm *mockPaymentManager, ls *mockLedgerService, ps *mockPayoutScheduler, resolver *mockResolver) http.Handler {
	if pm == nil {
		pm = &mockPaymentManager{}
	}
	if ls == nil {
		ls = &mockLedgerService{}
	}
	if ps == nil {
		ps = &mockPayoutScheduler{}
	}
	if resolver == nil {
		resolver = &mockResolver{known: map[string]adapter.GatewayStrategy{"wipay": nil}}
	}
	auth := NewAuthManager("secret", false, "", time.Minute)
	return NewServer(pm, ls, ps, resolver, &mockProviderRepo{}, "test-api-key", auth, newTestLogger()).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer test-api-key")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestGatewayCallback(t *testing.T) {
	t.Run("unknown gateway -> 404", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		form := url.Values{"order_id": {"ZC-1"}}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("missing order_id -> 400", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/wipay/callback", strings.NewReader("status=success"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("successful callback completes payment", func(t *testing.T) {
		var gotOrder string
		var gotData adapter.CallbackData
		pm := &mockPaymentManager{
			CompletePaymentFunc: func(ctx context.Context, orderID string, data adapter.CallbackData) (*model.Payment, error) {
				gotOrder = orderID
				gotData = data
				return &model.Payment{ID: "pay-1", OrderID: orderID, Status: model.PaymentStatusCompleted,
					GatewayType: model.GatewayTypeEscrow, Amount: dec("107.12"), Currency: "TTD"}, nil
			},
		}
		router := authedServer(pm, nil, nil, nil)

		form := url.Values{
			"order_id":       {"ZC-123"},
			"status":         {"success"},
			"transaction_id": {"txn-9"},
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/wipay/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotOrder != "ZC-123" {
			t.Fatalf("expected order ZC-123, got %q", gotOrder)
		}
		if gotData["transaction_id"] != "txn-9" {
			t.Fatalf("expected callback data to be forwarded, got %v", gotData)
		}
		var resp struct {
			PaymentID string `json:"payment_id"`
			Status    string `json:"status"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Status != "completed" || resp.PaymentID != "pay-1" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("unknown order -> 404", func(t *testing.T) {
		pm := &mockPaymentManager{
			CompletePaymentFunc: func(ctx context.Context, orderID string, data adapter.CallbackData) (*model.Payment, error) {
				return nil, domain.ErrNotFound
			},
		}
		router := authedServer(pm, nil, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/wipay/callback", strings.NewReader("order_id=ZC-404"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestInitializePaymentHandler(t *testing.T) {
	t.Run("valid request -> 201 with redirect", func(t *testing.T) {
		var gotType model.PaymentType
		pm := &mockPaymentManager{
			InitializePaymentFunc: func(ctx context.Context, provider *model.Provider, booking *model.Booking, service *model.Service, pt model.PaymentType) (*model.Payment, adapter.InitResult, error) {
				gotType = pt
				if provider.ID != "prov-1" || booking.ID != "bk-1" {
					t.Fatalf("unexpected args: provider=%s booking=%s", provider.ID, booking.ID)
				}
				return &model.Payment{ID: "pay-1", Status: model.PaymentStatusPending, GatewayType: model.GatewayTypeEscrow},
					adapter.InitResult{RedirectURL: "https://gateway.test/pay/ZC-1"}, nil
			},
		}
		router := authedServer(pm, nil, nil, nil)

		body := `{
			"provider_id": "prov-1",
			"payment_type": "full",
			"booking": {"id": "bk-1", "client_id": "cl-1", "service_id": "svc-1", "service_price": "100", "currency": "TTD"}
		}`
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payments", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotType != model.PaymentTypeFull {
			t.Fatalf("expected payment type full, got %q", gotType)
		}
		if !strings.Contains(rr.Body.String(), "https://gateway.test/pay/ZC-1") {
			t.Fatalf("expected redirect url in response: %s", rr.Body.String())
		}
	})

	t.Run("missing provider_id -> 400", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payments", `{"payment_type":"full","booking":{"id":"bk-1"}}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("deposit mismatch surfaces as 400", func(t *testing.T) {
		pm := &mockPaymentManager{
			InitializePaymentFunc: func(ctx context.Context, provider *model.Provider, booking *model.Booking, service *model.Service, pt model.PaymentType) (*model.Payment, adapter.InitResult, error) {
				return nil, adapter.InitResult{}, domain.ErrInvalidArgument
			},
		}
		router := authedServer(pm, nil, nil, nil)
		body := `{"provider_id":"prov-1","payment_type":"balance","booking":{"id":"bk-1","service_price":"100","currency":"TTD"}}`
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payments", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}

func TestRefundHandler(t *testing.T) {
	t.Run("partial refund passes amount through", func(t *testing.T) {
		var gotAmount *decimal.Decimal
		pm := &mockPaymentManager{
			RefundFunc: func(ctx context.Context, paymentID string, amount *decimal.Decimal) (adapter.RefundResult, error) {
				gotAmount = amount
				return adapter.RefundResult{Success: true, RefundID: "rf-1"}, nil
			},
		}
		router := authedServer(pm, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payments/pay-1/refund", `{"amount":"25.00"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotAmount == nil || !gotAmount.Equal(dec("25")) {
			t.Fatalf("expected amount 25, got %v", gotAmount)
		}
	})

	t.Run("refund of non-completed payment -> 409", func(t *testing.T) {
		pm := &mockPaymentManager{
			RefundFunc: func(ctx context.Context, paymentID string, amount *decimal.Decimal) (adapter.RefundResult, error) {
				return adapter.RefundResult{}, domain.ErrInvalidStatusChange
			},
		}
		router := authedServer(pm, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payments/pay-1/refund", "")
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})
}

func TestLedgerHandlers(t *testing.T) {
	t.Run("statement defaults pagination", func(t *testing.T) {
		var gotLimit, gotOffset int
		ls := &mockLedgerService{
			GetStatementFunc: func(ctx context.Context, providerID string, limit, offset int) ([]*model.LedgerEntry, error) {
				gotLimit, gotOffset = limit, offset
				return []*model.LedgerEntry{
					{ID: "01B", Type: model.LedgerEntryDebit, Amount: dec("30"), BalanceAfter: dec("70"), Currency: "TTD"},
					{ID: "01A", Type: model.LedgerEntryCredit, Amount: dec("100"), BalanceAfter: dec("100"), Currency: "TTD"},
				}, nil
			},
		}
		router := authedServer(nil, ls, nil, nil)
		rr := doJSON(t, router, http.MethodGet, "/api/v1/providers/prov-1/statement", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotLimit != 50 || gotOffset != 0 {
			t.Fatalf("expected default limit 50 offset 0, got %d/%d", gotLimit, gotOffset)
		}
		var resp struct {
			Entries []ledgerEntryResponse `json:"entries"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Entries) != 2 || resp.Entries[0].ID != "01B" {
			t.Fatalf("unexpected entries: %+v", resp.Entries)
		}
	})

	t.Run("earnings requires RFC 3339 range", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		rr := doJSON(t, router, http.MethodGet, "/api/v1/providers/prov-1/earnings?from=yesterday&to=today", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("hold and release round trip", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/providers/prov-1/holds", `{"amount":"40","reason":"dispute"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}

		rr = doJSON(t, router, http.MethodPost, "/api/v1/holds/entry-hold/release", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("double release -> 409", func(t *testing.T) {
		ls := &mockLedgerService{
			ReleaseFundsFunc: func(ctx context.Context, holdEntryID string) (*model.LedgerEntry, error) {
				return nil, domain.ErrHoldAlreadyReleased
			},
		}
		router := authedServer(nil, ls, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/holds/entry-hold/release", "")
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})
}

func TestPayoutHandlers(t *testing.T) {
	t.Run("cancel processing payout -> 409", func(t *testing.T) {
		ps := &mockPayoutScheduler{
			CancelPayoutFunc: func(ctx context.Context, id, reason string) error {
				return domain.ErrPayoutNotCancellable
			},
		}
		router := authedServer(nil, nil, ps, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payouts/po-1/cancel", `{"reason":"dup"}`)
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("cancel pending payout -> 204", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payouts/po-1/cancel", `{"reason":"dup"}`)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rr.Code)
		}
	})

	t.Run("retry returns the new payout", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payouts/po-9/retry", "")
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
		var resp payoutResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.RetryOfID == nil || *resp.RetryOfID != "po-9" {
			t.Fatalf("expected retry_of_id po-9, got %+v", resp)
		}
	})

	t.Run("process uses processed_by or a default", func(t *testing.T) {
		var gotBy string
		ps := &mockPayoutScheduler{
			ProcessPayoutFunc: func(ctx context.Context, id, processedBy string) error {
				gotBy = processedBy
				return nil
			},
		}
		router := authedServer(nil, nil, ps, nil)

		rr := doJSON(t, router, http.MethodPost, "/api/v1/payouts/po-1/process", `{"processed_by":"ops@zeen"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotBy != "ops@zeen" {
			t.Fatalf("expected processed_by ops@zeen, got %q", gotBy)
		}

		rr = doJSON(t, router, http.MethodPost, "/api/v1/payouts/po-1/process", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotBy != "admin" {
			t.Fatalf("expected default processed_by admin, got %q", gotBy)
		}
	})

	t.Run("empty batch -> 200 with zero count", func(t *testing.T) {
		ps := &mockPayoutScheduler{
			CreateBatchFunc: func(ctx context.Context, limit int) (string, int, error) {
				return "", 0, nil
			},
		}
		router := authedServer(nil, nil, ps, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payouts/batch", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("batch create and process", func(t *testing.T) {
		router := authedServer(nil, nil, nil, nil)
		rr := doJSON(t, router, http.MethodPost, "/api/v1/payouts/batch", `{"limit":10}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}

		rr = doJSON(t, router, http.MethodPost, "/api/v1/payouts/batch/batch-1/process", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var res model.BatchResult
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.BatchID != "batch-1" || res.Processed != 2 {
			t.Fatalf("unexpected batch result: %+v", res)
		}
	})
}
