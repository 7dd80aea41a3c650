package ledger

import (
	"time"

	"payvault/internal/models"
)

// RetryPolicy bounds optimistic-concurrency retries. Version conflicts
// inside the budget are retried transparently; past it the caller sees
// ErrConcurrentModification.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Config tunes the ledger service.
type Config struct {
	// LockTTL is the lease lifetime; operations must finish inside it.
	LockTTL time.Duration
	// LockAttempts and LockBackoff bound the fail-fast acquisition loop.
	LockAttempts int
	LockBackoff  time.Duration

	Retry RetryPolicy

	DefaultDailyLimit   int64
	DefaultMonthlyLimit int64
}

// Result pairs the updated wallet with the transaction row written in the
// same commit.
type Result struct {
	Wallet      *models.Wallet
	Transaction *models.Transaction
}

// TransferResult carries both sides of a transfer. The two transactions
// share a correlated reference pair (<ref>_OUT / <ref>_IN).
type TransferResult struct {
	Source            *models.Wallet
	Destination       *models.Wallet
	DebitTransaction  *models.Transaction
	CreditTransaction *models.Transaction
}

// CreateWalletInput creates one wallet per user, tenant and currency.
type CreateWalletInput struct {
	TenantID     uint
	UserID       uint
	Currency     string
	DailyLimit   int64
	MonthlyLimit int64
}
