package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/repository"
)

var _ repository.ProviderRepository = (*providerRepo)(nil)

type providerRepo struct{ pool *pgxpool.Pool }

func NewProviderRepo(pool *pgxpool.Pool) *providerRepo {
	return &providerRepo{pool: pool}
}

const providerSelect = `
SELECT p.id, p.name, p.tier, p.currency, p.fee_payer, p.fee_waiver_until, p.created_at, p.updated_at,
       m.id, m.gateway, m.merchant_id, m.encrypted_credentials, m.supports_split, m.verified, m.active, m.created_at, m.updated_at
FROM providers p
LEFT JOIN merchant_accounts m ON m.provider_id = p.id AND m.active`

func scanProvider(row pgx.Row) (*model.Provider, error) {
	p := &model.Provider{}
	var (
		mID, mGateway, mMerchantID, mCreds sql.NullString
		mSupportsSplit, mVerified, mActive sql.NullBool
		mCreatedAt, mUpdatedAt             sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Tier, &p.Currency, &p.FeePayer, &p.FeeWaiverUntil,
		&p.CreatedAt, &p.UpdatedAt,
		&mID, &mGateway, &mMerchantID, &mCreds, &mSupportsSplit, &mVerified, &mActive,
		&mCreatedAt, &mUpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if mID.Valid {
		p.Merchant = &model.MerchantAccount{
			ID:                   mID.String,
			ProviderID:           p.ID,
			Gateway:              mGateway.String,
			MerchantID:           mMerchantID.String,
			EncryptedCredentials: mCreds.String,
			SupportsSplit:        mSupportsSplit.Bool,
			Verified:             mVerified.Bool,
			Active:               mActive.Bool,
			CreatedAt:            mCreatedAt.Time,
			UpdatedAt:            mUpdatedAt.Time,
		}
	}
	return p, nil
}

func (r *providerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Provider, error) {
	q := providerSelect + ` WHERE p.id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProvider(row)
}

// LockForLedger takes the provider row lock that serializes ledger writers.
// It is only meaningful inside a transaction; any other handle is a misuse.
func (r *providerRepo) LockForLedger(ctx context.Context, tx repository.Tx, providerID string) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	const q = `SELECT id FROM providers WHERE id=$1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, q, providerID)
	if err != nil {
		return err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrReadDatabaseRow
	}
	return nil
}

// ListEscrowSettled returns providers without an eligible split merchant
// account; only these accumulate platform-held balance.
func (r *providerRepo) ListEscrowSettled(ctx context.Context, tx repository.Tx) ([]*model.Provider, error) {
	const q = `
SELECT p.id, p.name, p.tier, p.currency, p.fee_payer, p.fee_waiver_until, p.created_at, p.updated_at
FROM providers p
WHERE NOT EXISTS (
  SELECT 1 FROM merchant_accounts m
  WHERE m.provider_id = p.id AND m.active AND m.verified AND m.supports_split
)
ORDER BY p.id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Provider
	for rows.Next() {
		p := &model.Provider{}
		var waiver *time.Time
		if err := rows.Scan(&p.ID, &p.Name, &p.Tier, &p.Currency, &p.FeePayer, &waiver, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.FeeWaiverUntil = waiver
		out = append(out, p)
	}
	return out, rows.Err()
}
