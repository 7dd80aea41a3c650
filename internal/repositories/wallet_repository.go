package repositories

import (
	"context"
	"time"

	"payvault/internal/models"
)

// BalanceChange carries the computed field values for one conditional wallet
// write. The ledger service computes limit rollovers; the repository applies
// everything in a single version-matched statement.
type BalanceChange struct {
	Amount            int64
	DailyLimitUsed    int64
	DailyLimitReset   time.Time
	MonthlyLimitUsed  int64
	MonthlyLimitReset time.Time
	At                time.Time
}

// WalletRepository is the persistence contract for wallets and their paired
// transaction rows. ExecuteInTransaction yields a repository bound to the
// database transaction so a balance write and its transaction row share one
// atomic commit.
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetByOwner(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error)
	UpdateStatus(ctx context.Context, id uint, status string) error

	// ApplyCredit conditionally increments balance, ledger_balance and
	// version, matching on wallet.Version. Returns ErrVersionConflict when
	// the row moved underneath the caller.
	ApplyCredit(ctx context.Context, wallet *models.Wallet, amount int64, at time.Time) error

	// ApplyDebit conditionally decrements both balances, matching on
	// wallet.Version AND ledger_balance >= amount AND status = 'active', and
	// writes the limit usage counters from change.
	ApplyDebit(ctx context.Context, wallet *models.Wallet, change BalanceChange) error

	CreateTransaction(ctx context.Context, txn *models.Transaction) error

	ExecuteInTransaction(fn func(WalletRepository) error) error
}
