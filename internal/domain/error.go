package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnknownGateway       = errors.New("unknown payment gateway")
	ErrInvalidStatusChange  = errors.New("invalid status transition")
	ErrNotHoldEntry         = errors.New("ledger entry is not a hold")
	ErrHoldAlreadyReleased  = errors.New("hold has already been released")
	ErrInsufficientBalance  = errors.New("insufficient available balance")
	ErrPayoutNotCancellable = errors.New("payout cannot be cancelled in its current status")
	ErrPayoutNotRetryable   = errors.New("payout cannot be retried in its current status")
	ErrLedgerLockBusy       = errors.New("provider ledger is locked by another writer")

	// Infra-level errors surfaced through repositories
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
