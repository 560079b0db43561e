package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/infra/metrics"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResponse struct {
	Error string `json:"error"`
}

// writeErr maps domain errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownGateway):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidStatusChange),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrPayoutNotCancellable),
		errors.Is(err, domain.ErrPayoutNotRetryable),
		errors.Is(err, domain.ErrHoldAlreadyReleased),
		errors.Is(err, domain.ErrNotHoldEntry),
		errors.Is(err, domain.ErrInsufficientBalance):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrLedgerLockBusy):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errResponse{Error: err.Error()})
}

// ===== Payments =====

type paymentResponse struct {
	ID             string              `json:"id"`
	BookingID      string              `json:"booking_id"`
	ClientID       string              `json:"client_id"`
	ProviderID     string              `json:"provider_id"`
	Amount         decimal.Decimal     `json:"amount"`
	PlatformFee    decimal.Decimal     `json:"platform_fee"`
	ProviderAmount decimal.Decimal     `json:"provider_amount"`
	Currency       string              `json:"currency"`
	PaymentType    model.PaymentType   `json:"payment_type"`
	Gateway        string              `json:"gateway"`
	GatewayType    model.GatewayType   `json:"gateway_type"`
	OrderID        string              `json:"order_id"`
	TransactionID  string              `json:"transaction_id,omitempty"`
	Status         model.PaymentStatus `json:"status"`
	CardBrand      string              `json:"card_brand,omitempty"`
	CardLast4      string              `json:"card_last4,omitempty"`
	FailureReason  string              `json:"failure_reason,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		BookingID:      p.BookingID,
		ClientID:       p.ClientID,
		ProviderID:     p.ProviderID,
		Amount:         p.Amount,
		PlatformFee:    p.PlatformFee,
		ProviderAmount: p.ProviderAmount,
		Currency:       p.Currency,
		PaymentType:    p.PaymentType,
		Gateway:        p.Gateway,
		GatewayType:    p.GatewayType,
		OrderID:        p.OrderID,
		TransactionID:  p.TransactionID,
		Status:         p.Status,
		CardBrand:      p.CardBrand,
		CardLast4:      p.CardLast4,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
	}
}

type storedFeesRequest struct {
	ZeenFee           decimal.Decimal `json:"zeen_fee"`
	GatewayFee        decimal.Decimal `json:"gateway_fee"`
	ConvenienceFee    decimal.Decimal `json:"convenience_fee"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	DepositPercentage decimal.Decimal `json:"deposit_percentage"`
	RequiresDeposit   bool            `json:"requires_deposit"`
	FeePayer          model.FeePayer  `json:"fee_payer"`
	ZeenRate          decimal.Decimal `json:"zeen_rate"`
	GatewayRate       decimal.Decimal `json:"gateway_rate"`
	Tier              model.Tier      `json:"tier"`
}

type initPaymentRequest struct {
	ProviderID  string            `json:"provider_id"`
	PaymentType model.PaymentType `json:"payment_type"`
	Booking     struct {
		ID           string             `json:"id"`
		ClientID     string             `json:"client_id"`
		ServiceID    string             `json:"service_id"`
		ServicePrice decimal.Decimal    `json:"service_price"`
		Currency     string             `json:"currency"`
		StoredFees   *storedFeesRequest `json:"stored_fees,omitempty"`
	} `json:"booking"`
	Service *struct {
		DepositType       model.DepositType `json:"deposit_type"`
		DepositPercentage decimal.Decimal   `json:"deposit_percentage"`
	} `json:"service,omitempty"`
}

func (s *Server) handleInitializePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
		return
	}
	if req.ProviderID == "" || req.Booking.ID == "" {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "provider_id and booking.id are required"})
		return
	}

	provider, err := s.providers.FindByID(ctx, nil, req.ProviderID)
	if err != nil {
		writeErr(w, err)
		return
	}

	booking := &model.Booking{
		ID:           req.Booking.ID,
		ProviderID:   req.ProviderID,
		ClientID:     req.Booking.ClientID,
		ServiceID:    req.Booking.ServiceID,
		ServicePrice: req.Booking.ServicePrice,
		Currency:     req.Booking.Currency,
	}
	if sf := req.Booking.StoredFees; sf != nil {
		booking.Fees = &model.StoredFees{
			ZeenFee:           sf.ZeenFee,
			GatewayFee:        sf.GatewayFee,
			ConvenienceFee:    sf.ConvenienceFee,
			DepositAmount:     sf.DepositAmount,
			DepositPercentage: sf.DepositPercentage,
			RequiresDeposit:   sf.RequiresDeposit,
			FeePayer:          sf.FeePayer,
			ZeenRate:          sf.ZeenRate,
			GatewayRate:       sf.GatewayRate,
			Tier:              sf.Tier,
		}
	}
	var service *model.Service
	if req.Service != nil {
		service = &model.Service{
			ID:                req.Booking.ServiceID,
			ProviderID:        req.ProviderID,
			DepositType:       req.Service.DepositType,
			DepositPercentage: req.Service.DepositPercentage,
		}
	}

	p, res, err := s.payments.InitializePayment(ctx, provider, booking, service, req.PaymentType)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.IncPayment(string(p.Status), string(p.GatewayType))

	writeJSON(w, http.StatusCreated, struct {
		Payment      paymentResponse `json:"payment"`
		RedirectURL  string          `json:"redirect_url"`
		SessionToken string          `json:"session_token,omitempty"`
	}{toPaymentResponse(p), res.RedirectURL, res.SessionToken})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

func (s *Server) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
			return
		}
	}
	res, err := s.payments.Refund(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.IncPayment(string(model.PaymentStatusRefunded), "")
	writeJSON(w, http.StatusOK, struct {
		Success  bool   `json:"success"`
		RefundID string `json:"refund_id,omitempty"`
		Message  string `json:"message,omitempty"`
	}{res.Success, res.RefundID, res.Message})
}

// handleGatewayCallback applies a gateway webhook. The {gateway} segment must
// name a registered strategy; the payment itself is looked up by order id.
func (s *Server) handleGatewayCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gateway := chi.URLParam(r, "gateway")
	if _, err := s.resolver.ResolveByName(gateway); err != nil {
		writeErr(w, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "malformed callback"})
		return
	}
	data := adapter.CallbackData{}
	for k, vs := range r.Form {
		if len(vs) > 0 {
			data[k] = vs[0]
		}
	}
	orderID := data["order_id"]
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "order_id is required"})
		return
	}

	p, err := s.payments.CompletePayment(ctx, orderID, data)
	if err != nil && p == nil {
		writeErr(w, err)
		return
	}
	if err != nil {
		// Terminal state mismatch or transport failure; the payment record
		// still tells the gateway where things stand.
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("callback not fully applied")
	}

	metrics.IncPayment(string(p.Status), string(p.GatewayType))
	if p.Status == model.PaymentStatusCompleted {
		amt, _ := p.Amount.Float64()
		metrics.AddPaymentVolume(p.Currency, amt)
	}
	writeJSON(w, http.StatusOK, struct {
		PaymentID string              `json:"payment_id"`
		Status    model.PaymentStatus `json:"status"`
	}{p.ID, p.Status})
}

// ===== Provider balance and statement =====

type ledgerEntryResponse struct {
	ID           string                `json:"id"`
	Type         model.LedgerEntryType `json:"type"`
	Amount       decimal.Decimal       `json:"amount"`
	BalanceAfter decimal.Decimal       `json:"balance_after"`
	Currency     string                `json:"currency"`
	Description  string                `json:"description,omitempty"`
	BookingID    *string               `json:"booking_id,omitempty"`
	PaymentID    *string               `json:"payment_id,omitempty"`
	PayoutID     *string               `json:"payout_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (s *Server) handleProviderBalance(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.GetBalanceSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleProviderStatement(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.ledger.GetStatement(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryResponse{
			ID:           e.ID,
			Type:         e.Type,
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Currency:     e.Currency,
			Description:  e.Description,
			BookingID:    e.BookingID,
			PaymentID:    e.PaymentID,
			PayoutID:     e.PayoutID,
			CreatedAt:    e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []ledgerEntryResponse `json:"entries"`
		Limit   int                   `json:"limit"`
		Offset  int                   `json:"offset"`
	}{out, limit, offset})
}

func (s *Server) handleProviderEarnings(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "from must be RFC 3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "to must be RFC 3339"})
		return
	}

	earnings, err := s.ledger.GetEarningsInRange(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Earnings decimal.Decimal `json:"earnings"`
		From     time.Time       `json:"from"`
		To       time.Time       `json:"to"`
	}{earnings, from, to})
}

type holdRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	BookingID *string         `json:"booking_id,omitempty"`
}

func (s *Server) handleHoldFunds(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
		return
	}
	entry, err := s.ledger.HoldFunds(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Reason, req.BookingID)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.IncLedgerEntry(string(entry.Type))
	writeJSON(w, http.StatusCreated, struct {
		EntryID      string          `json:"entry_id"`
		BalanceAfter decimal.Decimal `json:"balance_after"`
	}{entry.ID, entry.BalanceAfter})
}

func (s *Server) handleReleaseFunds(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.ReleaseFunds(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.IncLedgerEntry(string(entry.Type))
	writeJSON(w, http.StatusOK, struct {
		EntryID      string          `json:"entry_id"`
		BalanceAfter decimal.Decimal `json:"balance_after"`
	}{entry.ID, entry.BalanceAfter})
}

// ===== Payouts =====

type payoutResponse struct {
	ID              string             `json:"id"`
	ProviderID      string             `json:"provider_id"`
	Amount          decimal.Decimal    `json:"amount"`
	Currency        string             `json:"currency"`
	ScheduledFor    time.Time          `json:"scheduled_for"`
	Status          model.PayoutStatus `json:"status"`
	BatchID         *string            `json:"batch_id,omitempty"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	ProcessedBy     string             `json:"processed_by,omitempty"`
	PayoutMethod    string             `json:"payout_method"`
	ReferenceNumber string             `json:"reference_number,omitempty"`
	RetryOfID       *string            `json:"retry_of_id,omitempty"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}

func toPayoutResponse(p *model.ScheduledPayout) payoutResponse {
	return payoutResponse{
		ID:              p.ID,
		ProviderID:      p.ProviderID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		ScheduledFor:    p.ScheduledFor,
		Status:          p.Status,
		BatchID:         p.BatchID,
		ProcessedAt:     p.ProcessedAt,
		ProcessedBy:     p.ProcessedBy,
		PayoutMethod:    p.PayoutMethod,
		ReferenceNumber: p.ReferenceNumber,
		RetryOfID:       p.RetryOfID,
		FailureReason:   p.FailureReason,
		Notes:           p.Notes,
	}
}

func (s *Server) handleGetPayout(w http.ResponseWriter, r *http.Request) {
	p, err := s.payouts.GetPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResponse(p))
}

func (s *Server) handleProcessPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProcessedBy string `json:"processed_by"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
			return
		}
	}
	if req.ProcessedBy == "" {
		req.ProcessedBy = "admin"
	}

	id := chi.URLParam(r, "id")
	if err := s.payouts.ProcessPayout(r.Context(), id, req.ProcessedBy); err != nil {
		writeErr(w, err)
		return
	}
	p, err := s.payouts.GetPayout(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if p.Status == model.PayoutStatusCompleted {
		amt, _ := p.Amount.Float64()
		metrics.AddPayoutVolume(p.Currency, amt)
	}
	writeJSON(w, http.StatusOK, toPayoutResponse(p))
}

func (s *Server) handleCancelPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
			return
		}
	}
	if err := s.payouts.CancelPayout(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryPayout(w http.ResponseWriter, r *http.Request) {
	retry, err := s.payouts.RetryPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutResponse(retry))
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
			return
		}
	}

	batchID, count, err := s.payouts.CreateBatch(r.Context(), req.Limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if count == 0 {
		writeJSON(w, http.StatusOK, struct {
			BatchID string `json:"batch_id"`
			Count   int    `json:"count"`
		}{"", 0})
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		BatchID string `json:"batch_id"`
		Count   int    `json:"count"`
	}{batchID, count})
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.payouts.ProcessBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.AddPayoutOutcomes(res.Processed, res.Failed, res.Skipped)
	writeJSON(w, http.StatusOK, res)
}
