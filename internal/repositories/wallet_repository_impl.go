package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payvault/internal/models"

	"gorm.io/gorm"
)

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a gorm-backed wallet repository.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	result := r.db.WithContext(ctx).Create(wallet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: wallet for user %d in %s", ErrDuplicateKey, wallet.UserID, wallet.Currency)
		}
		return fmt.Errorf("failed to create wallet: %w", result.Error)
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByOwner(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND currency = ?", tenantID, userID, currency).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) ApplyCredit(ctx context.Context, wallet *models.Wallet, amount int64, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":             gorm.Expr("balance + ?", amount),
			"ledger_balance":      gorm.Expr("ledger_balance + ?", amount),
			"version":             gorm.Expr("version + 1"),
			"last_transaction_at": at,
			"updated_at":          at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to credit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	wallet.Balance += amount
	wallet.LedgerBalance += amount
	wallet.Version++
	wallet.LastTransactionAt = &at
	return nil
}

func (r *walletRepository) ApplyDebit(ctx context.Context, wallet *models.Wallet, change BalanceChange) error {
	// The guards repeat in SQL what the ledger already checked in memory.
	// The write only lands if the version, status and ledger balance all
	// still hold, so a lease bug or expiry race cannot oversell the wallet.
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ? AND status = ? AND ledger_balance >= ?",
			wallet.ID, wallet.Version, models.WalletStatusActive, change.Amount).
		Updates(map[string]interface{}{
			"balance":             gorm.Expr("balance - ?", change.Amount),
			"ledger_balance":      gorm.Expr("ledger_balance - ?", change.Amount),
			"version":             gorm.Expr("version + 1"),
			"daily_limit_used":    change.DailyLimitUsed,
			"daily_limit_reset":   change.DailyLimitReset,
			"monthly_limit_used":  change.MonthlyLimitUsed,
			"monthly_limit_reset": change.MonthlyLimitReset,
			"last_transaction_at": change.At,
			"updated_at":          change.At,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to debit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	wallet.Balance -= change.Amount
	wallet.LedgerBalance -= change.Amount
	wallet.Version++
	wallet.DailyLimitUsed = change.DailyLimitUsed
	wallet.DailyLimitReset = change.DailyLimitReset
	wallet.MonthlyLimitUsed = change.MonthlyLimitUsed
	wallet.MonthlyLimitReset = change.MonthlyLimitReset
	wallet.LastTransactionAt = &change.At
	return nil
}

func (r *walletRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	result := r.db.WithContext(ctx).Create(txn)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: transaction %s", ErrDuplicateKey, txn.Reference)
		}
		return fmt.Errorf("failed to create transaction: %w", result.Error)
	}
	return nil
}

func (r *walletRepository) ExecuteInTransaction(fn func(WalletRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&walletRepository{db: tx})
	})
}
