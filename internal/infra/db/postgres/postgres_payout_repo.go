package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/repository"
)

var _ repository.PayoutRepository = (*payoutRepo)(nil)

type payoutRepo struct{ pool *pgxpool.Pool }

func NewPayoutRepo(pool *pgxpool.Pool) *payoutRepo {
	return &payoutRepo{pool: pool}
}

const payoutColumns = `id, provider_id, amount, currency, scheduled_for, status, batch_id, processed_at, processed_by, payout_method, reference_number, disbursement_id, disbursement_res, retry_of_id, failure_reason, notes, created_at, updated_at`

func (r *payoutRepo) Save(ctx context.Context, tx repository.Tx, p *model.ScheduledPayout) error {
	const q = `
INSERT INTO scheduled_payouts (
  id, provider_id, amount, currency, scheduled_for, status, batch_id, processed_at, processed_by, payout_method, reference_number, disbursement_id, disbursement_res, retry_of_id, failure_reason, notes, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  amount=$3, scheduled_for=$5, status=$6, batch_id=$7, processed_at=$8, processed_by=$9,
  reference_number=$11, disbursement_id=$12, disbursement_res=$13, failure_reason=$15, notes=$16, updated_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.ProviderID, p.Amount, p.Currency, p.ScheduledFor, p.Status, p.BatchID,
		p.ProcessedAt, p.ProcessedBy, p.PayoutMethod, p.ReferenceNumber, p.DisbursementID,
		p.DisbursementRes, p.RetryOfID, p.FailureReason, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayout(row pgx.Row) (*model.ScheduledPayout, error) {
	p := &model.ScheduledPayout{}
	if err := row.Scan(&p.ID, &p.ProviderID, &p.Amount, &p.Currency, &p.ScheduledFor, &p.Status,
		&p.BatchID, &p.ProcessedAt, &p.ProcessedBy, &p.PayoutMethod, &p.ReferenceNumber,
		&p.DisbursementID, &p.DisbursementRes, &p.RetryOfID, &p.FailureReason, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *payoutRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledPayout, error) {
	q := `SELECT ` + payoutColumns + ` FROM scheduled_payouts WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayout(row)
}

func (r *payoutRepo) HasOpenPayout(ctx context.Context, tx repository.Tx, providerID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM scheduled_payouts WHERE provider_id=$1 AND status IN ('pending','processing'));`
	row, err := pickRow(ctx, r.pool, tx, q, providerID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *payoutRepo) SumScheduled(ctx context.Context, tx repository.Tx, providerID string) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM scheduled_payouts WHERE provider_id=$1 AND status IN ('pending','processing');`
	row, err := pickRow(ctx, r.pool, tx, q, providerID)
	if err != nil {
		return decimal.Zero, err
	}
	var sum decimal.Decimal
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *payoutRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ScheduledPayout, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + payoutColumns + ` FROM scheduled_payouts WHERE status='pending' AND scheduled_for <= $1 ORDER BY scheduled_for ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayouts(rows)
}

// MarkProcessing claims a payout; the conditional WHERE admits one worker.
func (r *payoutRepo) MarkProcessing(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE scheduled_payouts SET status='processing', updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *payoutRepo) ListPendingUnbatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.ScheduledPayout, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + payoutColumns + ` FROM scheduled_payouts WHERE status='pending' AND batch_id IS NULL ORDER BY created_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayouts(rows)
}

func (r *payoutRepo) AssignBatch(ctx context.Context, tx repository.Tx, ids []string, batchID string) error {
	const q = `UPDATE scheduled_payouts SET batch_id=$2, updated_at=NOW() WHERE id = ANY($1) AND status='pending';`
	_, err := execSQL(ctx, r.pool, tx, q, ids, batchID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *payoutRepo) ListByBatch(ctx context.Context, tx repository.Tx, batchID string) ([]*model.ScheduledPayout, error) {
	q := `SELECT ` + payoutColumns + ` FROM scheduled_payouts WHERE batch_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayouts(rows)
}

func collectPayouts(rows pgx.Rows) ([]*model.ScheduledPayout, error) {
	var out []*model.ScheduledPayout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
