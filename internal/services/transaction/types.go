package transaction

import (
	"context"

	"payvault/internal/models"
	"payvault/internal/queue"
)

// InitiateRequest creates a transaction. Metadata carries the per-type
// required keys: transfers need source_wallet_id and destination_wallet_id,
// wallet-method deposits and withdrawals need wallet_id (or a user id plus
// currency to resolve one).
type InitiateRequest struct {
	TenantID       uint
	UserID         *uint
	Type           string
	Amount         int64
	Currency       string
	Description    string
	PaymentMethod  string
	Provider       string
	IdempotencyKey *string
	Metadata       models.JSON
}

// Enqueuer is the slice of the job queue the orchestrator uses. Satisfied
// by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...queue.Option) error
}

// ProcessPayload is the payments-queue job body.
type ProcessPayload struct {
	TransactionID uint `json:"transaction_id"`
}

// Service drives the transaction state machine:
// pending -> processing -> {completed | failed}; pending -> cancelled;
// failed -> pending (explicit Retry). Every transition is a status-gated
// write, so redelivered jobs and racing workers are harmless.
type Service interface {
	// Initialize creates the pending transaction and enqueues processing.
	// The bool reports whether a new record was created; false means an
	// existing one was returned for the idempotency key.
	Initialize(ctx context.Context, req InitiateRequest) (*models.Transaction, bool, error)
	Process(ctx context.Context, transactionID uint) error
	Cancel(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error)
	Retry(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error)
	GetByReference(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error)

	// ConfirmProviderEvent applies a verified, normalized provider webhook
	// to the awaiting deposit. Callers must have verified the signature.
	ConfirmProviderEvent(ctx context.Context, provider string, reference, status string) error
}
