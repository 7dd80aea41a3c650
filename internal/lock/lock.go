// Package lock implements short-lived distributed leases on redis.
//
// A lease is a SETNX key holding a random token with a TTL. Release is a
// compare-and-delete so a caller that lost its lease to expiry can never
// free a lease re-acquired by someone else. Correctness of the ledger does
// not rest on the lease alone; the version-matched writes in the wallet
// repository are the final guard.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock errors
var (
	// ErrNotAcquired means the lease is held by another caller. The caller
	// retries after a short delay or surfaces "locked, retry later".
	ErrNotAcquired = errors.New("lock held by another process")

	// ErrNotOwned means the release token no longer matches: the lease
	// expired and may have been re-acquired.
	ErrNotOwned = errors.New("lock not owned by this token")
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Manager acquires and releases leases on a shared redis client.
type Manager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key string, token string) error
}

type manager struct {
	client *redis.Client
}

// NewManager creates a redis-backed lease manager.
func NewManager(client *redis.Client) Manager {
	if client == nil {
		panic("redis client is required")
	}
	return &manager{client: client}
}

// Acquire makes a single non-blocking attempt to take the lease and returns
// the per-acquisition token on success.
func (m *manager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", ErrNotAcquired
	}
	return token, nil
}

// Release frees the lease if token still owns it.
func (m *manager) Release(ctx context.Context, key string, token string) error {
	res, err := releaseScript.Run(ctx, m.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if res == 0 {
		return ErrNotOwned
	}
	return nil
}

// WalletKey builds the lease key serializing operations on one wallet.
func WalletKey(walletID uint) string {
	return fmt.Sprintf("wallet_lock:%d", walletID)
}
