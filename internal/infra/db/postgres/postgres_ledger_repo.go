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

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

// ledgerRepo persists the append-only provider ledger. No UPDATE or DELETE
// statements exist in this file on purpose.
type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

const ledgerColumns = `id, provider_id, booking_id, payment_id, payout_id, amount, type, balance_after, currency, description, metadata, created_at`

func (r *ledgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	const q = `
INSERT INTO ledger_entries (
  id, provider_id, booking_id, payment_id, payout_id, amount, type, balance_after, currency, description, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.ProviderID, e.BookingID, e.PaymentID, e.PayoutID,
		e.Amount, e.Type, e.BalanceAfter, e.Currency, e.Description, e.Metadata, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanLedgerEntry(row pgx.Row) (*model.LedgerEntry, error) {
	e := &model.LedgerEntry{}
	if err := row.Scan(&e.ID, &e.ProviderID, &e.BookingID, &e.PaymentID, &e.PayoutID,
		&e.Amount, &e.Type, &e.BalanceAfter, &e.Currency, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *ledgerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.LedgerEntry, error) {
	q := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanLedgerEntry(row)
}

// LastEntry orders by id: ids are ULIDs, so lexical order is insertion order
// and identity breaks ties.
func (r *ledgerRepo) LastEntry(ctx context.Context, tx repository.Tx, providerID string) (*model.LedgerEntry, error) {
	q := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE provider_id=$1 ORDER BY id DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, providerID)
	if err != nil {
		return nil, err
	}
	return scanLedgerEntry(row)
}

func (r *ledgerRepo) SumByType(ctx context.Context, tx repository.Tx, providerID string, t model.LedgerEntryType) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE provider_id=$1 AND type=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, providerID, t)
	if err != nil {
		return decimal.Zero, err
	}
	var sum decimal.Decimal
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *ledgerRepo) HasReleaseForHold(ctx context.Context, tx repository.Tx, holdEntryID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE type='release' AND metadata->>'hold_entry_id' = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, holdEntryID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *ledgerRepo) ListByProvider(ctx context.Context, tx repository.Tx, providerID string, limit, offset int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE provider_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, providerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) SumCreditsInRange(ctx context.Context, tx repository.Tx, providerID string, from, to time.Time) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE provider_id=$1 AND type='credit' AND created_at >= $2 AND created_at <= $3;`
	row, err := pickRow(ctx, r.pool, tx, q, providerID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	var sum decimal.Decimal
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *ledgerRepo) ReplayBalance(ctx context.Context, tx repository.Tx, providerID string) (decimal.Decimal, error) {
	const q = `
SELECT COALESCE(SUM(CASE WHEN type IN ('credit','release') THEN amount ELSE -amount END), 0)
FROM ledger_entries WHERE provider_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, providerID)
	if err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	if err := row.Scan(&balance); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return balance, nil
}
