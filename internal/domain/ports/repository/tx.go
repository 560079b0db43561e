package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX is the explicit non-transactional handle.
var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Repositories accept the handle as `Tx` and detect a live transaction on the
// implementation side (e.g. to append FOR UPDATE). They MUST gracefully
// accept a nil handle for the non-transactional path.
//
// Ledger mutations rely on this plus a provider row lock to serialize
// concurrent writers per provider; see usecase.LedgerService.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
