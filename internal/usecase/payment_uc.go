// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentManager = (*paymentMgr)(nil)

// PaymentManager orchestrates one payment's lifecycle: resolve the gateway,
// initialize, complete on callback, refund. It is the only writer of payment
// state, and the only caller of LedgerService.CreditProvider.
type PaymentManager interface {
	// InitializePayment creates the payment record with its fee split,
	// configures the processor-side split for split-settled providers, and
	// opens the gateway session.
	InitializePayment(ctx context.Context, provider *model.Provider, booking *model.Booking, service *model.Service, paymentType model.PaymentType) (*model.Payment, adapter.InitResult, error)
	// CompletePayment applies a gateway callback. Safe under duplicate
	// webhook delivery: the status guard admits each transition once.
	CompletePayment(ctx context.Context, orderID string, data adapter.CallbackData) (*model.Payment, error)
	// Refund refunds the full amount when amount is nil. It never touches
	// the ledger; callers post DebitForRefund explicitly once confirmed.
	Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (adapter.RefundResult, error)

	GetPayment(ctx context.Context, id string) (*model.Payment, error)

	// ReconcilePayment polls the gateway for a payment stuck in processing
	// (lost callback) and applies the real outcome.
	ReconcilePayment(ctx context.Context, payment *model.Payment) error
	// ReconcileStale sweeps payments left in processing longer than the
	// given cutoff. Per-payment errors are logged, never propagated.
	ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type paymentMgr struct {
	fees     FeeCalculator
	resolver GatewayResolver
	ledger   LedgerService
	payments repository.PaymentRepository

	returnURL string
	cancelURL string

	now func() time.Time
	log *zerolog.Logger
}

func NewPaymentManager(
	fees FeeCalculator,
	resolver GatewayResolver,
	ledger LedgerService,
	payments repository.PaymentRepository,
	returnURL, cancelURL string,
	logger *zerolog.Logger,
) *paymentMgr {
	return &paymentMgr{
		fees:     fees,
		resolver: resolver,
		ledger:   ledger,
		payments: payments,

		returnURL: returnURL,
		cancelURL: cancelURL,

		now: time.Now,
		log: logger,
	}
}

func (m *paymentMgr) InitializePayment(ctx context.Context, provider *model.Provider, booking *model.Booking, service *model.Service, paymentType model.PaymentType) (*model.Payment, adapter.InitResult, error) {
	if provider == nil || booking == nil {
		return nil, adapter.InitResult{}, domain.ErrInvalidArgument
	}

	fees := m.fees.CalculateFees(provider, booking.ServicePrice, service, booking)
	base, err := legBase(fees, paymentType)
	if err != nil {
		return nil, adapter.InitResult{}, err
	}
	pf := m.fees.PaymentFees(fees, paymentType)

	// With a client fee payer the fees ride on top of the charge; with a
	// provider fee payer they come out of the provider's share. Either way
	// providerAmount = amount - fees.
	amount := base
	if fees.FeePayer == model.FeePayerClient {
		amount = model.Round2(base.Add(pf.Total))
	}
	providerAmount := model.Round2(amount.Sub(pf.Total))

	strategy, err := m.resolver.Resolve(provider)
	if err != nil {
		return nil, adapter.InitResult{}, err
	}

	now := m.now().UTC()
	p := &model.Payment{
		ID:         uuid.NewString(),
		BookingID:  booking.ID,
		ClientID:   booking.ClientID,
		ProviderID: provider.ID,

		Amount:         amount,
		PlatformFee:    pf.PlatformFee,
		ProviderAmount: providerAmount,
		Currency:       booking.Currency,
		PaymentType:    paymentType,

		Gateway:     strategy.Name(),
		GatewayType: strategy.Type(),
		OrderID:     "ZC-" + ulid.Make().String(),
		Status:      model.PaymentStatusPending,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if sg, ok := strategy.(adapter.SplitGateway); ok && p.GatewayType == model.GatewayTypeSplit {
		split := model.SplitDetails{
			ProviderMerchantID: provider.Merchant.MerchantID,
			PlatformMerchantID: sg.PlatformMerchantID(),
			AmountToProvider:   providerAmount,
			AmountToPlatform:   model.Round2(amount.Sub(providerAmount)),
		}
		if err := sg.ConfigureSplit(p, split); err != nil {
			return nil, adapter.InitResult{}, fmt.Errorf("configure split: %w", err)
		}
	}

	if err := m.payments.Save(ctx, nil, p); err != nil {
		return nil, adapter.InitResult{}, err
	}

	res, err := strategy.InitializePayment(ctx, p, m.returnURL, m.cancelURL)
	if err != nil {
		reason := err.Error()
		if _, _, ferr := m.transition(ctx, p.ID, []model.PaymentStatus{model.PaymentStatusPending}, model.PaymentStatusFailed, nil, &reason); ferr != nil {
			m.log.Error().Err(ferr).Str("payment_id", p.ID).Msg("failed to mark payment failed after init error")
		}
		return nil, adapter.InitResult{}, fmt.Errorf("initialize payment: %w", err)
	}

	m.log.Info().Str("payment_id", p.ID).Str("order_id", p.OrderID).
		Str("gateway", p.Gateway).Str("gateway_type", string(p.GatewayType)).
		Str("amount", p.Amount.String()).Msg("payment initialized")
	return p, res, nil
}

// legBase is the pre-fee charge base of one payment leg.
func legBase(fees model.FeeResult, t model.PaymentType) (decimal.Decimal, error) {
	switch t {
	case model.PaymentTypeFull:
		if fees.RequiresDeposit {
			return decimal.Zero, fmt.Errorf("%w: booking requires a deposit, full payment not allowed", domain.ErrInvalidArgument)
		}
		return fees.ServicePrice, nil
	case model.PaymentTypeDeposit:
		if !fees.RequiresDeposit {
			return decimal.Zero, fmt.Errorf("%w: booking does not require a deposit", domain.ErrInvalidArgument)
		}
		return fees.DepositAmount, nil
	case model.PaymentTypeBalance:
		if !fees.RequiresDeposit {
			return decimal.Zero, fmt.Errorf("%w: no deposit precedes this balance payment", domain.ErrInvalidArgument)
		}
		return model.Round2(fees.ServicePrice.Sub(fees.DepositAmount)), nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown payment type %q", domain.ErrInvalidArgument, t)
}

func (m *paymentMgr) CompletePayment(ctx context.Context, orderID string, data adapter.CallbackData) (*model.Payment, error) {
	p, err := m.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case model.PaymentStatusCompleted:
		// Duplicate webhook delivery after completion; nothing to do.
		m.log.Debug().Str("payment_id", p.ID).Msg("completion callback for already completed payment")
		return p, nil
	case model.PaymentStatusFailed, model.PaymentStatusRefunded:
		return p, domain.ErrInvalidStatusChange
	}

	// Claim the payment for this callback before touching the gateway.
	ok, p, err := m.transition(ctx, p.ID, []model.PaymentStatus{model.PaymentStatusPending}, model.PaymentStatusProcessing, nil, nil)
	if err != nil {
		return nil, err
	}
	if !ok && p.Status != model.PaymentStatusProcessing {
		if p.Status == model.PaymentStatusCompleted {
			return p, nil
		}
		return p, domain.ErrInvalidStatusChange
	}

	strategy, err := m.resolver.ResolveByName(p.Gateway)
	if err != nil {
		return p, err
	}
	res, err := strategy.CompletePayment(ctx, p, data)
	if err != nil {
		var gwErr *adapter.GatewayError
		if errors.As(err, &gwErr) {
			return m.fail(ctx, p, gwErr.Code, gwErr.Message)
		}
		// Transport failure: leave the payment in processing for the
		// reconciliation sweep to settle against the gateway's real state.
		return p, fmt.Errorf("complete payment: %w", err)
	}
	if !res.Success {
		return m.fail(ctx, p, res.ResponseCode, res.Message)
	}
	return m.finalize(ctx, p, res)
}

// finalize applies a successful gateway result: processing -> completed, then
// the escrow ledger credit. The credit is idempotent through the payment's
// ledger entry link, so webhook retries after a partial failure are safe.
func (m *paymentMgr) finalize(ctx context.Context, p *model.Payment, res adapter.PaymentResult) (*model.Payment, error) {
	now := m.now().UTC()
	ok, err := m.payments.UpdateStatusIf(ctx, nil, p.ID,
		[]model.PaymentStatus{model.PaymentStatusProcessing},
		model.PaymentStatusCompleted, &res.TransactionID, &now, nil)
	if err != nil {
		return p, err
	}
	if !ok {
		// Another worker finished first.
		return m.payments.FindByID(ctx, nil, p.ID)
	}

	p.Status = model.PaymentStatusCompleted
	p.TransactionID = res.TransactionID
	p.CardBrand = res.CardBrand
	p.CardLast4 = res.CardLast4
	p.CompletedAt = &now
	p.UpdatedAt = now
	if res.SplitDetails != nil {
		p.SplitDetails = res.SplitDetails
	}
	if err := m.payments.Save(ctx, nil, p); err != nil {
		m.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to persist completion details")
	}

	// Split funds were divided at the processor and never pass through
	// platform custody; only escrow completions credit the ledger.
	if p.GatewayType == model.GatewayTypeEscrow {
		if _, err := m.ledger.CreditProvider(ctx, p); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return p, fmt.Errorf("credit provider for payment %s: %w", p.ID, err)
		}
	}

	m.log.Info().Str("payment_id", p.ID).Str("transaction_id", p.TransactionID).
		Str("gateway_type", string(p.GatewayType)).Msg("payment completed")
	return p, nil
}

func (m *paymentMgr) fail(ctx context.Context, p *model.Payment, code, message string) (*model.Payment, error) {
	reason := message
	if code != "" {
		reason = code + ": " + message
	}
	_, p2, err := m.transition(ctx, p.ID,
		[]model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusProcessing},
		model.PaymentStatusFailed, nil, &reason)
	if err != nil {
		return p, err
	}
	m.log.Warn().Str("payment_id", p.ID).Str("reason", reason).Msg("payment failed")
	return p2, nil
}

// transition is the conditional status move plus a re-read of the row.
func (m *paymentMgr) transition(ctx context.Context, id string, from []model.PaymentStatus, to model.PaymentStatus, completedAt *time.Time, failureReason *string) (bool, *model.Payment, error) {
	ok, err := m.payments.UpdateStatusIf(ctx, nil, id, from, to, nil, completedAt, failureReason)
	if err != nil {
		return false, nil, err
	}
	p, err := m.payments.FindByID(ctx, nil, id)
	if err != nil {
		return ok, nil, err
	}
	return ok, p, nil
}

func (m *paymentMgr) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (adapter.RefundResult, error) {
	p, err := m.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	if p.Status != model.PaymentStatusCompleted {
		return adapter.RefundResult{}, domain.ErrInvalidStatusChange
	}
	if amount != nil && (!amount.IsPositive() || amount.GreaterThan(p.Amount)) {
		return adapter.RefundResult{}, domain.ErrInvalidArgument
	}

	strategy, err := m.resolver.ResolveByName(p.Gateway)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	res, err := strategy.Refund(ctx, p, amount)
	if err != nil {
		return res, fmt.Errorf("refund payment %s: %w", p.ID, err)
	}
	if !res.Success {
		return res, fmt.Errorf("%w: refund declined: %s", domain.ErrOperationFailed, res.Message)
	}

	if ok, err := m.payments.UpdateStatusIf(ctx, nil, p.ID,
		[]model.PaymentStatus{model.PaymentStatusCompleted},
		model.PaymentStatusRefunded, nil, nil, nil); err != nil {
		return res, err
	} else if !ok {
		return res, domain.ErrInvalidStatusChange
	}
	m.log.Info().Str("payment_id", p.ID).Str("refund_id", res.RefundID).Msg("payment refunded")
	return res, nil
}

func (m *paymentMgr) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return m.payments.FindByID(ctx, nil, id)
}

func (m *paymentMgr) ReconcilePayment(ctx context.Context, payment *model.Payment) error {
	if payment == nil {
		return domain.ErrInvalidArgument
	}
	if payment.Status != model.PaymentStatusProcessing {
		return nil
	}
	strategy, err := m.resolver.ResolveByName(payment.Gateway)
	if err != nil {
		return err
	}
	res, err := strategy.VerifyPayment(ctx, payment)
	if err != nil {
		// Gateway unreachable; the next sweep will try again.
		return fmt.Errorf("verify payment %s: %w", payment.ID, err)
	}
	if res.Success {
		_, err = m.finalize(ctx, payment, res)
		return err
	}
	_, err = m.fail(ctx, payment, res.ResponseCode, res.Message)
	return err
}

func (m *paymentMgr) ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := m.payments.ListProcessingOlderThan(ctx, nil, olderThan, limit)
	if err != nil {
		return 0, err
	}
	reconciled := 0
	for _, p := range stale {
		if err := m.ReconcilePayment(ctx, p); err != nil {
			m.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconciliation attempt failed")
			continue
		}
		reconciled++
	}
	return reconciled, nil
}
