//go:build !integration

package web

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/domain/ports/repository"
	"zeen-connect/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ---- PaymentManager mock ----

type mockPaymentManager struct {
	InitializePaymentFunc func(ctx context.Context, provider *model.Provider, booking *model.Booking, service *model.Service, t model.PaymentType) (*model.Payment, adapter.InitResult, error)
	CompletePaymentFunc   func(ctx context.Context, orderID string, data adapter.CallbackData) (*model.Payment, error)
	RefundFunc            func(ctx context.Context, paymentID string, amount *decimal.Decimal) (adapter.RefundResult, error)
	GetPaymentFunc        func(ctx context.Context, id string) (*model.Payment, error)
}

var _ usecase.PaymentManager = (*mockPaymentManager)(nil)

func (m *mockPaymentManager) InitializePayment(ctx context.Context, provider *model.Provider, booking *model.Booking, service *model.Service, t model.PaymentType) (*model.Payment, adapter.InitResult, error) {
	if m.InitializePaymentFunc != nil {
		return m.InitializePaymentFunc(ctx, provider, booking, service, t)
	}
	return &model.Payment{ID: "pay-1", Status: model.PaymentStatusPending, GatewayType: model.GatewayTypeEscrow},
		adapter.InitResult{RedirectURL: "https://gateway.test/pay/pay-1"}, nil
}

func (m *mockPaymentManager) CompletePayment(ctx context.Context, orderID string, data adapter.CallbackData) (*model.Payment, error) {
	if m.CompletePaymentFunc != nil {
		return m.CompletePaymentFunc(ctx, orderID, data)
	}
	return &model.Payment{ID: "pay-1", OrderID: orderID, Status: model.PaymentStatusCompleted,
		GatewayType: model.GatewayTypeEscrow, Amount: dec("100"), Currency: "TTD"}, nil
}

func (m *mockPaymentManager) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (adapter.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, paymentID, amount)
	}
	return adapter.RefundResult{Success: true, RefundID: "refund-" + paymentID}, nil
}

func (m *mockPaymentManager) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, id)
	}
	return &model.Payment{ID: id, Status: model.PaymentStatusCompleted}, nil
}

func (m *mockPaymentManager) ReconcilePayment(ctx context.Context, payment *model.Payment) error {
	return nil
}

func (m *mockPaymentManager) ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	return 0, nil
}

// ---- LedgerService mock ----

type mockLedgerService struct {
	GetBalanceSummaryFunc func(ctx context.Context, providerID string) (*model.BalanceSummary, error)
	GetStatementFunc      func(ctx context.Context, providerID string, limit, offset int) ([]*model.LedgerEntry, error)
	HoldFundsFunc         func(ctx context.Context, providerID string, amount decimal.Decimal, reason string, bookingID *string) (*model.LedgerEntry, error)
	ReleaseFundsFunc      func(ctx context.Context, holdEntryID string) (*model.LedgerEntry, error)
}

var _ usecase.LedgerService = (*mockLedgerService)(nil)

func (m *mockLedgerService) CreditProvider(ctx context.Context, payment *model.Payment) (*model.LedgerEntry, error) {
	return nil, nil
}
func (m *mockLedgerService) DebitForPayout(ctx context.Context, payout *model.ScheduledPayout) (*model.LedgerEntry, error) {
	return nil, nil
}
func (m *mockLedgerService) ReverseDebitForPayout(ctx context.Context, payout *model.ScheduledPayout, amount decimal.Decimal) (*model.LedgerEntry, error) {
	return nil, nil
}
func (m *mockLedgerService) DebitForRefund(ctx context.Context, payment *model.Payment, amount decimal.Decimal) (*model.LedgerEntry, error) {
	return nil, nil
}

func (m *mockLedgerService) HoldFunds(ctx context.Context, providerID string, amount decimal.Decimal, reason string, bookingID *string) (*model.LedgerEntry, error) {
	if m.HoldFundsFunc != nil {
		return m.HoldFundsFunc(ctx, providerID, amount, reason, bookingID)
	}
	return &model.LedgerEntry{ID: "entry-hold", Type: model.LedgerEntryHold, Amount: amount, BalanceAfter: dec("60")}, nil
}

func (m *mockLedgerService) ReleaseFunds(ctx context.Context, holdEntryID string) (*model.LedgerEntry, error) {
	if m.ReleaseFundsFunc != nil {
		return m.ReleaseFundsFunc(ctx, holdEntryID)
	}
	return &model.LedgerEntry{ID: "entry-release", Type: model.LedgerEntryRelease, BalanceAfter: dec("100")}, nil
}

func (m *mockLedgerService) GetProviderBalance(ctx context.Context, providerID string) (decimal.Decimal, error) {
	return dec("100"), nil
}
func (m *mockLedgerService) GetHeldAmount(ctx context.Context, providerID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (m *mockLedgerService) GetAvailableBalance(ctx context.Context, providerID string) (decimal.Decimal, error) {
	return dec("100"), nil
}

func (m *mockLedgerService) GetBalanceSummary(ctx context.Context, providerID string) (*model.BalanceSummary, error) {
	if m.GetBalanceSummaryFunc != nil {
		return m.GetBalanceSummaryFunc(ctx, providerID)
	}
	return &model.BalanceSummary{Total: dec("150"), Available: dec("100"), Held: dec("50"), Currency: "TTD"}, nil
}

func (m *mockLedgerService) GetEarningsInRange(ctx context.Context, providerID string, from, to time.Time) (decimal.Decimal, error) {
	return dec("160"), nil
}

func (m *mockLedgerService) GetStatement(ctx context.Context, providerID string, limit, offset int) ([]*model.LedgerEntry, error) {
	if m.GetStatementFunc != nil {
		return m.GetStatementFunc(ctx, providerID, limit, offset)
	}
	return nil, nil
}

func (m *mockLedgerService) CheckConsistency(ctx context.Context, providerID string) error { return nil }

// ---- PayoutScheduler mock ----

type mockPayoutScheduler struct {
	ProcessPayoutFunc func(ctx context.Context, id, processedBy string) error
	CancelPayoutFunc  func(ctx context.Context, id, reason string) error
	RetryPayoutFunc   func(ctx context.Context, id string) (*model.ScheduledPayout, error)
	CreateBatchFunc   func(ctx context.Context, limit int) (string, int, error)
	ProcessBatchFunc  func(ctx context.Context, batchID string) (*model.BatchResult, error)
	GetPayoutFunc     func(ctx context.Context, id string) (*model.ScheduledPayout, error)
}

var _ usecase.PayoutScheduler = (*mockPayoutScheduler)(nil)

func (m *mockPayoutScheduler) SchedulePayouts(ctx context.Context) (int, error) { return 0, nil }
func (m *mockPayoutScheduler) ProcessScheduledPayouts(ctx context.Context) (*model.BatchResult, error) {
	return &model.BatchResult{}, nil
}

func (m *mockPayoutScheduler) ProcessPayout(ctx context.Context, id, processedBy string) error {
	if m.ProcessPayoutFunc != nil {
		return m.ProcessPayoutFunc(ctx, id, processedBy)
	}
	return nil
}

func (m *mockPayoutScheduler) CancelPayout(ctx context.Context, id, reason string) error {
	if m.CancelPayoutFunc != nil {
		return m.CancelPayoutFunc(ctx, id, reason)
	}
	return nil
}

func (m *mockPayoutScheduler) RetryPayout(ctx context.Context, id string) (*model.ScheduledPayout, error) {
	if m.RetryPayoutFunc != nil {
		return m.RetryPayoutFunc(ctx, id)
	}
	orig := id
	return &model.ScheduledPayout{ID: "retry-" + id, Status: model.PayoutStatusPending, RetryOfID: &orig}, nil
}

func (m *mockPayoutScheduler) CreateBatch(ctx context.Context, limit int) (string, int, error) {
	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, limit)
	}
	return "batch-1", 2, nil
}

func (m *mockPayoutScheduler) ProcessBatch(ctx context.Context, batchID string) (*model.BatchResult, error) {
	if m.ProcessBatchFunc != nil {
		return m.ProcessBatchFunc(ctx, batchID)
	}
	return &model.BatchResult{BatchID: batchID, Processed: 2}, nil
}

func (m *mockPayoutScheduler) GetPayout(ctx context.Context, id string) (*model.ScheduledPayout, error) {
	if m.GetPayoutFunc != nil {
		return m.GetPayoutFunc(ctx, id)
	}
	return &model.ScheduledPayout{ID: id, Status: model.PayoutStatusPending}, nil
}

// ---- GatewayResolver mock ----

type mockResolver struct {
	known map[string]adapter.GatewayStrategy
}

var _ usecase.GatewayResolver = (*mockResolver)(nil)

func (m *mockResolver) Resolve(provider *model.Provider) (adapter.GatewayStrategy, error) {
	return nil, nil
}

func (m *mockResolver) ResolveByName(name string) (adapter.GatewayStrategy, error) {
	if s, ok := m.known[name]; ok {
		return s, nil
	}
	return nil, domain.ErrUnknownGateway
}

func (m *mockResolver) DetermineGatewayType(provider *model.Provider) model.GatewayType {
	return model.GatewayTypeEscrow
}

// ---- ProviderRepository mock ----

type mockProviderRepo struct {
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Provider, error)
}

var _ repository.ProviderRepository = (*mockProviderRepo)(nil)

func (m *mockProviderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Provider, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	return &model.Provider{ID: id, Tier: model.TierGrowth, Currency: "TTD", FeePayer: model.FeePayerProvider}, nil
}

func (m *mockProviderRepo) LockForLedger(ctx context.Context, tx repository.Tx, providerID string) error {
	return nil
}

func (m *mockProviderRepo) ListEscrowSettled(ctx context.Context, tx repository.Tx) ([]*model.Provider, error) {
	return nil, nil
}
