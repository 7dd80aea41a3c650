package ledger

import "errors"

// Service errors
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrWalletNotActive      = errors.New("wallet is not active")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrDailyLimitExceeded   = errors.New("daily limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")

	// ErrWalletLocked means the distributed lease could not be acquired
	// within the attempt budget; the caller retries after a short delay.
	ErrWalletLocked = errors.New("wallet locked, retry later")

	// ErrConcurrentModification means the version-matched write lost its
	// race past the retry budget.
	ErrConcurrentModification = errors.New("wallet modified concurrently")

	ErrSameWalletTransfer = errors.New("cannot transfer to the same wallet")
	ErrTenantMismatch     = errors.New("wallets belong to different tenants")
	ErrCurrencyMismatch   = errors.New("wallets hold different currencies")
)
