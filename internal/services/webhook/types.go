package webhook

import (
	"context"
	"errors"
	"time"

	"payvault/internal/models"
	"payvault/internal/queue"
)

// Delivery constants
const (
	JobDeliver = "webhook.deliver"

	// MaxAttempts bounds total delivery tries; past it the webhook is
	// abandoned and escalated.
	MaxAttempts = 5

	requestTimeout = 10 * time.Second

	// Outbound headers
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// retryLadder is the fixed delay before each retry, indexed by the number
// of attempts already made.
var retryLadder = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// ErrTransactionNotFound is returned by Replay for unknown references.
var ErrTransactionNotFound = errors.New("transaction not found")

// DeliverPayload is the webhooks-queue job body.
type DeliverPayload struct {
	TransactionID uint   `json:"transaction_id"`
	Event         string `json:"event"`
}

// Payload is the canonical outbound body. The signature is computed over
// its exact serialized bytes.
type Payload struct {
	Event     string      `json:"event"`
	Data      PayloadData `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// PayloadData carries the transaction snapshot.
type PayloadData struct {
	ID          uint         `json:"id"`
	Reference   string       `json:"reference"`
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	Amount      int64        `json:"amount"`
	Currency    string       `json:"currency"`
	Description string       `json:"description"`
	User        *PayloadUser `json:"user,omitempty"`
	Metadata    models.JSON  `json:"metadata,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// PayloadUser is the user snapshot embedded in the payload.
type PayloadUser struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Alerter escalates permanently failed deliveries to operators. The default
// implementation logs; deployments plug in pager/email channels.
type Alerter interface {
	Alert(ctx context.Context, message string, fields map[string]interface{})
}

// Enqueuer schedules retry jobs; satisfied by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...queue.Option) error
}

// Service delivers signed outcome notifications with bounded retries.
type Service interface {
	// Send attempts one delivery. Failed attempts inside the budget are
	// rescheduled internally; Send itself returns nil for them so queue
	// redelivery does not double the ladder.
	Send(ctx context.Context, transactionID uint, event string) error

	// Replay resets delivery bookkeeping and re-sends immediately.
	Replay(ctx context.Context, tenantID uint, reference, event string) (*models.Transaction, error)
}
