package repositories

import (
	"context"
	"time"

	"payvault/internal/models"
)

// CacheRepository is the read-through wallet cache. Every method is
// best-effort: callers fall back to postgres on miss or cache failure.
type CacheRepository interface {
	GetWallet(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, wallet *models.Wallet) error

	GetBalance(ctx context.Context, walletID uint) (int64, error)
	SetBalance(ctx context.Context, walletID uint, balance int64) error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
