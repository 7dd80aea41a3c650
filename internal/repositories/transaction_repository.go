package repositories

import (
	"context"
	"time"

	"payvault/internal/models"
)

// TransactionRepository is the persistence contract for the transaction
// lifecycle. Status moves only through UpdateStatusGated so the state
// machine has a single writer per transition.
type TransactionRepository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	GetByReference(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, tenantID uint, key string) (*models.Transaction, error)
	GetByProviderReference(ctx context.Context, provider, providerRef string) (*models.Transaction, error)

	// UpdateStatusGated moves status from -> to and applies fields in the
	// same statement, matching on the current status. Zero rows affected
	// means another worker owns the transition (ErrStatusConflict).
	UpdateStatusGated(ctx context.Context, id uint, from, to string, fields map[string]interface{}) error

	// UpdateWebhookBookkeeping touches only the webhook delivery fields,
	// which stay mutable after the transaction is terminal.
	UpdateWebhookBookkeeping(ctx context.Context, id uint, status string, attempts int, at time.Time) error

	ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)
}
