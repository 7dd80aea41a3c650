package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"payvault/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss marks a key absence; callers fall back to the store.
var ErrCacheMiss = errors.New("cache miss")

const walletCacheTTL = 5 * time.Minute

type redisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a redis-backed wallet cache.
func NewRedisCacheRepository(client *redis.Client) CacheRepository {
	return &redisCacheRepository{client: client}
}

func walletKey(tenantID, userID uint, currency string) string {
	return fmt.Sprintf("wallet:%d:%d:%s", tenantID, userID, currency)
}

func balanceKey(walletID uint) string {
	return fmt.Sprintf("wallet_balance:%d", walletID)
}

func (r *redisCacheRepository) GetWallet(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error) {
	val, err := r.client.Get(ctx, walletKey(tenantID, userID, currency)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal(val, &wallet); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &wallet, nil
}

func (r *redisCacheRepository) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	key := walletKey(wallet.TenantID, wallet.UserID, wallet.Currency)
	return r.client.Set(ctx, key, data, walletCacheTTL).Err()
}

func (r *redisCacheRepository) InvalidateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.Delete(ctx,
		walletKey(wallet.TenantID, wallet.UserID, wallet.Currency),
		balanceKey(wallet.ID),
	)
}

func (r *redisCacheRepository) GetBalance(ctx context.Context, walletID uint) (int64, error) {
	val, err := r.client.Get(ctx, balanceKey(walletID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("cache get: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}

func (r *redisCacheRepository) SetBalance(ctx context.Context, walletID uint, balance int64) error {
	return r.client.Set(ctx, balanceKey(walletID), strconv.FormatInt(balance, 10), walletCacheTTL).Err()
}

func (r *redisCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return val, nil
}

func (r *redisCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
