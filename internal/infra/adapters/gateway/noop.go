package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

var _ adapter.GatewayStrategy = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory escrow gateway for dev mode and tests.
// Every payment succeeds.
type NoopGateway struct {
	mu       sync.Mutex
	seq      int64
	sessions map[string]string // order id -> session token
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{sessions: make(map[string]string)}
}

func (g *NoopGateway) Name() string            { return "noop" }
func (g *NoopGateway) Type() model.GatewayType { return model.GatewayTypeEscrow }

func (g *NoopGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopGateway) InitializePayment(ctx context.Context, p *model.Payment, returnURL, cancelURL string) (adapter.InitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	token := g.next()
	g.sessions[p.OrderID] = token
	return adapter.InitResult{
		RedirectURL:  "https://example.test/pay/" + p.OrderID,
		SessionToken: token,
	}, nil
}

func (g *NoopGateway) CompletePayment(ctx context.Context, p *model.Payment, data adapter.CallbackData) (adapter.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	token, ok := g.sessions[p.OrderID]
	if !ok {
		return adapter.PaymentResult{}, fmt.Errorf("noop: unknown order %s", p.OrderID)
	}
	return adapter.PaymentResult{
		Success:       true,
		TransactionID: "txn-" + token,
		CardBrand:     "VISA",
		CardLast4:     "4242",
	}, nil
}

func (g *NoopGateway) VerifyPayment(ctx context.Context, p *model.Payment) (adapter.PaymentResult, error) {
	return g.CompletePayment(ctx, p, nil)
}

func (g *NoopGateway) Refund(ctx context.Context, p *model.Payment, amount *decimal.Decimal) (adapter.RefundResult, error) {
	return adapter.RefundResult{Success: true, RefundID: "refund-" + p.OrderID}, nil
}
