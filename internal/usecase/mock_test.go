//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- Mock ProviderRepository ----

type MockProviderRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Provider

	// LockCalls records LockForLedger invocations per provider.
	LockCalls map[string]int

	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.Provider, error)
	LockForLedgerFunc func(ctx context.Context, tx repository.Tx, providerID string) error
}

var _ repository.ProviderRepository = (*MockProviderRepo)(nil)

func NewMockProviderRepo() *MockProviderRepo {
	return &MockProviderRepo{store: map[string]*model.Provider{}, LockCalls: map[string]int{}}
}

func (r *MockProviderRepo) Put(p *model.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.store[p.ID] = &cp
}

func (r *MockProviderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Provider, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockProviderRepo) LockForLedger(ctx context.Context, tx repository.Tx, providerID string) error {
	if r.LockForLedgerFunc != nil {
		return r.LockForLedgerFunc(ctx, tx, providerID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LockCalls[providerID]++
	return nil
}

func (r *MockProviderRepo) ListEscrowSettled(ctx context.Context, tx repository.Tx) ([]*model.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Provider
	for _, p := range r.store {
		if !p.UsesSplitSettlement() {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Mock LedgerRepository ----

// MockLedgerRepo keeps entries in insertion order, which matches the ULID
// ordering contract of the real repository.
type MockLedgerRepo struct {
	mu      sync.RWMutex
	entries []*model.LedgerEntry

	InsertFunc    func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error
	LastEntryFunc func(ctx context.Context, tx repository.Tx, providerID string) (*model.LedgerEntry, error)
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{}
}

func (r *MockLedgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MockLedgerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockLedgerRepo) LastEntry(ctx context.Context, tx repository.Tx, providerID string) (*model.LedgerEntry, error) {
	if r.LastEntryFunc != nil {
		return r.LastEntryFunc(ctx, tx, providerID)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ProviderID == providerID {
			cp := *r.entries[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockLedgerRepo) SumByType(ctx context.Context, tx repository.Tx, providerID string, t model.LedgerEntryType) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.ProviderID == providerID && e.Type == t {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (r *MockLedgerRepo) HasReleaseForHold(ctx context.Context, tx repository.Tx, holdEntryID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Type != model.LedgerEntryRelease || e.Metadata == nil {
			continue
		}
		if ref, ok := e.Metadata["hold_entry_id"].(string); ok && ref == holdEntryID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockLedgerRepo) ListByProvider(ctx context.Context, tx repository.Tx, providerID string, limit, offset int) ([]*model.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*model.LedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ProviderID == providerID {
			cp := *r.entries[i]
			all = append(all, &cp)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MockLedgerRepo) SumCreditsInRange(ctx context.Context, tx repository.Tx, providerID string, from, to time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.ProviderID != providerID || e.Type != model.LedgerEntryCredit {
			continue
		}
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func (r *MockLedgerRepo) ReplayBalance(ctx context.Context, tx repository.Tx, providerID string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	balance := decimal.Zero
	for _, e := range r.entries {
		if e.ProviderID == providerID {
			balance = e.Apply(balance)
		}
	}
	return balance, nil
}

// Entries returns a snapshot for assertions.
func (r *MockLedgerRepo) Entries() []*model.LedgerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.LedgerEntry, len(r.entries))
	for i, e := range r.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	SaveFunc           func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateStatusIfFunc func(ctx context.Context, tx repository.Tx, id string, from []model.PaymentStatus, to model.PaymentStatus, transactionID *string, completedAt *time.Time, failureReason *string) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.store[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.store {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from []model.PaymentStatus, to model.PaymentStatus, transactionID *string, completedAt *time.Time, failureReason *string) (bool, error) {
	if r.UpdateStatusIfFunc != nil {
		return r.UpdateStatusIfFunc(ctx, tx, id, from, to, transactionID, completedAt, failureReason)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	matched := false
	for _, f := range from {
		if p.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	p.Status = to
	if transactionID != nil {
		p.TransactionID = *transactionID
	}
	if completedAt != nil {
		t := *completedAt
		p.CompletedAt = &t
	}
	if failureReason != nil {
		p.FailureReason = *failureReason
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *MockPaymentRepo) SetLedgerEntryID(ctx context.Context, tx repository.Tx, paymentID, entryID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[paymentID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.LedgerEntryID != nil {
		return false, nil
	}
	id := entryID
	p.LedgerEntryID = &id
	return true, nil
}

func (r *MockPaymentRepo) ListProcessingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Payment
	for _, p := range r.store {
		if p.Status == model.PaymentStatusProcessing && p.UpdatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock PayoutRepository ----

type MockPayoutRepo struct {
	mu    sync.RWMutex
	store map[string]*model.ScheduledPayout

	SaveFunc           func(ctx context.Context, tx repository.Tx, p *model.ScheduledPayout) error
	MarkProcessingFunc func(ctx context.Context, tx repository.Tx, id string) (bool, error)
}

var _ repository.PayoutRepository = (*MockPayoutRepo)(nil)

func NewMockPayoutRepo() *MockPayoutRepo {
	return &MockPayoutRepo{store: map[string]*model.ScheduledPayout{}}
}

func (r *MockPayoutRepo) Save(ctx context.Context, tx repository.Tx, p *model.ScheduledPayout) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.store[p.ID] = &cp
	return nil
}

func (r *MockPayoutRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledPayout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPayoutRepo) HasOpenPayout(ctx context.Context, tx repository.Tx, providerID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.store {
		if p.ProviderID != providerID {
			continue
		}
		if p.Status == model.PayoutStatusPending || p.Status == model.PayoutStatusProcessing {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockPayoutRepo) SumScheduled(ctx context.Context, tx repository.Tx, providerID string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, p := range r.store {
		if p.ProviderID != providerID {
			continue
		}
		if p.Status == model.PayoutStatusPending || p.Status == model.PayoutStatusProcessing {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *MockPayoutRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ScheduledPayout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ScheduledPayout
	for _, p := range r.store {
		if p.Status == model.PayoutStatusPending && !p.ScheduledFor.After(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPayoutRepo) MarkProcessing(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	if r.MarkProcessingFunc != nil {
		return r.MarkProcessingFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PayoutStatusPending {
		return false, nil
	}
	p.Status = model.PayoutStatusProcessing
	return true, nil
}

func (r *MockPayoutRepo) ListPendingUnbatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.ScheduledPayout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ScheduledPayout
	for _, p := range r.store {
		if p.Status == model.PayoutStatusPending && p.BatchID == nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPayoutRepo) AssignBatch(ctx context.Context, tx repository.Tx, ids []string, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		p, ok := r.store[id]
		if !ok {
			return domain.ErrNotFound
		}
		b := batchID
		p.BatchID = &b
	}
	return nil
}

func (r *MockPayoutRepo) ListByBatch(ctx context.Context, tx repository.Tx, batchID string) ([]*model.ScheduledPayout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ScheduledPayout
	for _, p := range r.store {
		if p.BatchID != nil && *p.BatchID == batchID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================
// Transactions and locking
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction. Tests that
// need to verify transactional behavior assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// =============================
// Adapters
// =============================

// ---- Mock GatewayStrategy ----

type MockGateway struct {
	NameVal string
	TypeVal model.GatewayType

	InitializePaymentFunc func(ctx context.Context, p *model.Payment, returnURL, cancelURL string) (adapter.InitResult, error)
	CompletePaymentFunc   func(ctx context.Context, p *model.Payment, data adapter.CallbackData) (adapter.PaymentResult, error)
	VerifyPaymentFunc     func(ctx context.Context, p *model.Payment) (adapter.PaymentResult, error)
	RefundFunc            func(ctx context.Context, p *model.Payment, amount *decimal.Decimal) (adapter.RefundResult, error)
}

var _ adapter.GatewayStrategy = (*MockGateway)(nil)

func NewMockEscrowGateway() *MockGateway {
	return &MockGateway{NameVal: "wipay", TypeVal: model.GatewayTypeEscrow}
}

func (g *MockGateway) Name() string           { return g.NameVal }
func (g *MockGateway) Type() model.GatewayType { return g.TypeVal }

func (g *MockGateway) InitializePayment(ctx context.Context, p *model.Payment, returnURL, cancelURL string) (adapter.InitResult, error) {
	if g.InitializePaymentFunc != nil {
		return g.InitializePaymentFunc(ctx, p, returnURL, cancelURL)
	}
	return adapter.InitResult{RedirectURL: "https://gateway.test/pay/" + p.OrderID, SessionToken: "tok-" + p.OrderID}, nil
}

func (g *MockGateway) CompletePayment(ctx context.Context, p *model.Payment, data adapter.CallbackData) (adapter.PaymentResult, error) {
	if g.CompletePaymentFunc != nil {
		return g.CompletePaymentFunc(ctx, p, data)
	}
	return adapter.PaymentResult{Success: true, TransactionID: "txn-" + p.OrderID, CardBrand: "visa", CardLast4: "4242"}, nil
}

func (g *MockGateway) VerifyPayment(ctx context.Context, p *model.Payment) (adapter.PaymentResult, error) {
	if g.VerifyPaymentFunc != nil {
		return g.VerifyPaymentFunc(ctx, p)
	}
	return adapter.PaymentResult{Success: true, TransactionID: "txn-" + p.OrderID}, nil
}

func (g *MockGateway) Refund(ctx context.Context, p *model.Payment, amount *decimal.Decimal) (adapter.RefundResult, error) {
	if g.RefundFunc != nil {
		return g.RefundFunc(ctx, p, amount)
	}
	return adapter.RefundResult{Success: true, RefundID: "rf-" + p.ID}, nil
}

// ---- Mock SplitGateway ----

type MockSplitGateway struct {
	MockGateway
	PlatformMerchantIDVal string

	ConfigureSplitFunc func(p *model.Payment, split model.SplitDetails) error
	ConfiguredSplits   []model.SplitDetails
}

var _ adapter.SplitGateway = (*MockSplitGateway)(nil)

func NewMockSplitGateway(merchantID string) *MockSplitGateway {
	return &MockSplitGateway{
		MockGateway:           MockGateway{NameVal: "wipay-split", TypeVal: model.GatewayTypeSplit},
		PlatformMerchantIDVal: merchantID,
	}
}

func (g *MockSplitGateway) ConfigureSplit(p *model.Payment, split model.SplitDetails) error {
	if g.ConfigureSplitFunc != nil {
		return g.ConfigureSplitFunc(p, split)
	}
	cp := split
	p.SplitDetails = &cp
	g.ConfiguredSplits = append(g.ConfiguredSplits, split)
	return nil
}

func (g *MockSplitGateway) PlatformMerchantID() string { return g.PlatformMerchantIDVal }

// ---- Mock DisbursementGateway ----

type MockDisburser struct {
	mu    sync.Mutex
	Calls []*model.ScheduledPayout

	DisburseFunc func(ctx context.Context, payout *model.ScheduledPayout) (adapter.DisbursementResult, error)
}

var _ adapter.DisbursementGateway = (*MockDisburser)(nil)

func (d *MockDisburser) Name() string { return "wipay-disburse" }

func (d *MockDisburser) Disburse(ctx context.Context, payout *model.ScheduledPayout) (adapter.DisbursementResult, error) {
	d.mu.Lock()
	cp := *payout
	d.Calls = append(d.Calls, &cp)
	d.mu.Unlock()
	if d.DisburseFunc != nil {
		return d.DisburseFunc(ctx, payout)
	}
	return adapter.DisbursementResult{Success: true, DisbursementID: "disb-" + payout.ID, RawResponse: `{"status":"ok"}`}, nil
}

// ---- Mock TierService ----

// MockTierService mirrors the published fee schedule defaults.
type MockTierService struct {
	Rates       map[model.Tier]decimal.Decimal
	DepositMins map[model.Tier]decimal.Decimal
}

var _ adapter.TierService = (*MockTierService)(nil)

func NewMockTierService() *MockTierService {
	return &MockTierService{
		Rates: map[model.Tier]decimal.Decimal{
			model.TierStarter: dec("5"),
			model.TierGrowth:  dec("4"),
			model.TierPremium: dec("3"),
		},
		DepositMins: map[model.Tier]decimal.Decimal{
			model.TierStarter: dec("25"),
			model.TierGrowth:  dec("20"),
			model.TierPremium: dec("15"),
		},
	}
}

func (s *MockTierService) FeeRate(tier model.Tier) decimal.Decimal {
	return s.Rates[tier]
}

func (s *MockTierService) DepositMinimum(tier model.Tier) decimal.Decimal {
	return s.DepositMins[tier]
}

func (s *MockTierService) CanDisableDeposit(tier model.Tier) bool {
	return tier == model.TierPremium
}

// ---- Mock CredentialDecrypter ----

type MockDecrypter struct {
	Decrypted   []string
	DecryptFunc func(ciphertext string) (string, error)
}

func (d *MockDecrypter) Decrypt(ciphertext string) (string, error) {
	d.Decrypted = append(d.Decrypted, ciphertext)
	if d.DecryptFunc != nil {
		return d.DecryptFunc(ciphertext)
	}
	return "decrypted:" + ciphertext, nil
}
