package disbursement

import (
	"context"
	"sync"

	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

var _ adapter.DisbursementGateway = (*NoopDisbursement)(nil)

// NoopDisbursement records payouts in memory for dev mode and tests. Every
// disbursement succeeds.
type NoopDisbursement struct {
	mu   sync.Mutex
	sent []string // payout ids in disbursement order
}

func NewNoopDisbursement() *NoopDisbursement {
	return &NoopDisbursement{}
}

func (d *NoopDisbursement) Name() string { return "noop" }

func (d *NoopDisbursement) Disburse(ctx context.Context, payout *model.ScheduledPayout) (adapter.DisbursementResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, payout.ID)
	return adapter.DisbursementResult{
		Success:        true,
		DisbursementID: "noop-" + payout.ID,
	}, nil
}

// Sent returns the disbursed payout ids, oldest first.
func (d *NoopDisbursement) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.sent))
	copy(out, d.sent)
	return out
}
