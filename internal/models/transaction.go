package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeTransfer   = "transfer"
	TransactionTypeFee        = "fee"
	TransactionTypeRefund     = "refund"
)

// Transaction statuses
const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusCancelled  = "cancelled"
)

// Webhook delivery statuses
const (
	WebhookStatusPending = "pending"
	WebhookStatusSent    = "sent"
	WebhookStatusFailed  = "failed"
)

// Payment methods
const (
	PaymentMethodWallet = "wallet"
	PaymentMethodCard   = "card"
	PaymentMethodBank   = "bank_transfer"
)

// Transaction is the append-only audit record of a money movement. Rows are
// never deleted; once completed or failed only the webhook bookkeeping
// fields change.
type Transaction struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	Reference string `gorm:"not null;uniqueIndex:idx_txn_tenant_ref,priority:2" json:"reference"`
	TenantID  uint   `gorm:"not null;index;uniqueIndex:idx_txn_tenant_ref,priority:1" json:"tenant_id"`
	UserID    *uint  `gorm:"index" json:"user_id,omitempty"`

	Type        string `gorm:"not null" json:"type"`
	Status      string `gorm:"not null;default:'pending';index" json:"status"`
	Amount      int64  `gorm:"not null" json:"amount"`
	Currency    string `gorm:"not null;size:3" json:"currency"`
	Description string `json:"description"`

	SourceWalletID      *uint `gorm:"index" json:"source_wallet_id,omitempty"`
	DestinationWalletID *uint `gorm:"index" json:"destination_wallet_id,omitempty"`

	Provider          string `json:"provider,omitempty"`
	ProviderReference string `gorm:"index" json:"provider_reference,omitempty"`
	ProviderResponse  JSON   `gorm:"type:jsonb" json:"provider_response,omitempty"`
	PaymentMethod     string `json:"payment_method,omitempty"`

	FeePlatform int64 `gorm:"not null;default:0" json:"fee_platform"`
	FeeProvider int64 `gorm:"not null;default:0" json:"fee_provider"`
	FeeTotal    int64 `gorm:"not null;default:0" json:"fee_total"`

	// IdempotencyKey is unique per tenant when present. The partial unique
	// index backing the guard lives in repositories.InitDB; AutoMigrate
	// cannot express it.
	IdempotencyKey *string `json:"idempotency_key,omitempty"`

	WebhookStatus      string     `gorm:"not null;default:'pending'" json:"webhook_status"`
	WebhookAttempts    int        `gorm:"not null;default:0" json:"webhook_attempts"`
	WebhookLastAttempt *time.Time `json:"webhook_last_attempt,omitempty"`

	RiskScore  int         `gorm:"not null;default:0" json:"risk_score"`
	FraudFlags StringSlice `gorm:"type:jsonb" json:"fraud_flags,omitempty"`

	ParentTransactionID *uint  `gorm:"index" json:"parent_transaction_id,omitempty"`
	FailureReason       string `json:"failure_reason,omitempty"`

	Metadata JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// ValidTransition reports whether the state machine allows from -> to.
// pending -> processing -> {completed|failed}; pending -> cancelled;
// failed -> pending (explicit retry); processing -> pending (deposit parked
// awaiting provider confirmation). Nothing skips processing.
func ValidTransition(from, to string) bool {
	switch from {
	case TransactionStatusPending:
		return to == TransactionStatusProcessing || to == TransactionStatusCancelled
	case TransactionStatusProcessing:
		return to == TransactionStatusCompleted ||
			to == TransactionStatusFailed ||
			to == TransactionStatusPending
	case TransactionStatusFailed:
		return to == TransactionStatusPending
	}
	return false
}
