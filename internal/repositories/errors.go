package repositories

import "errors"

// Repository errors
var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrUserNotFound        = errors.New("user not found")

	// ErrVersionConflict means a conditional write matched zero rows: the
	// wallet's version moved, or a debit guard (status/ledger balance)
	// failed at commit time.
	ErrVersionConflict = errors.New("wallet version conflict")

	// ErrStatusConflict means a status-gated transaction update matched zero
	// rows; another worker owns the transition.
	ErrStatusConflict = errors.New("transaction status conflict")

	ErrDuplicateKey = errors.New("duplicate key")
)
