package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, booking_id, client_id, provider_id, amount, platform_fee, provider_amount, currency, payment_type, gateway, gateway_type, order_id, transaction_id, status, card_brand, card_last4, split_details, ledger_entry_id, failure_reason, created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, booking_id, client_id, provider_id, amount, platform_fee, provider_amount, currency, payment_type, gateway, gateway_type, order_id, transaction_id, status, card_brand, card_last4, split_details, ledger_entry_id, failure_reason, created_at, updated_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
) ON CONFLICT (id) DO UPDATE SET
  transaction_id=$13, status=$14, card_brand=$15, card_last4=$16, split_details=$17, failure_reason=$19, updated_at=$21, completed_at=$22;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.BookingID, p.ClientID, p.ProviderID, p.Amount, p.PlatformFee, p.ProviderAmount,
		p.Currency, p.PaymentType, p.Gateway, p.GatewayType, p.OrderID, p.TransactionID, p.Status,
		p.CardBrand, p.CardLast4, p.SplitDetails, p.LedgerEntryID, p.FailureReason,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.BookingID, &p.ClientID, &p.ProviderID, &p.Amount, &p.PlatformFee,
		&p.ProviderAmount, &p.Currency, &p.PaymentType, &p.Gateway, &p.GatewayType, &p.OrderID,
		&p.TransactionID, &p.Status, &p.CardBrand, &p.CardLast4, &p.SplitDetails, &p.LedgerEntryID,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatusIf is the conditional transition guard. The WHERE clause admits
// exactly one winner under duplicate webhook delivery.
func (r *paymentRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from []model.PaymentStatus, to model.PaymentStatus, transactionID *string, completedAt *time.Time, failureReason *string) (bool, error) {
	const q = `
UPDATE payments SET
  status=$2,
  transaction_id=COALESCE($4, transaction_id),
  completed_at=COALESCE($5, completed_at),
  failure_reason=COALESCE($6, failure_reason),
  updated_at=NOW()
WHERE id=$1 AND status = ANY($3);`

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), fromStrs, transactionID, completedAt, failureReason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

// SetLedgerEntryID writes the credit link only when it is still null.
func (r *paymentRepo) SetLedgerEntryID(ctx context.Context, tx repository.Tx, paymentID, entryID string) (bool, error) {
	const q = `UPDATE payments SET ledger_entry_id=$2, updated_at=NOW() WHERE id=$1 AND ledger_entry_id IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, paymentID, entryID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListProcessingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status='processing' AND updated_at < $1 ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
