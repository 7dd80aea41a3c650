package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"payvault/internal/models"
	"payvault/internal/queue"
	"payvault/internal/repositories"

	"go.uber.org/zap"
)

type service struct {
	txns      repositories.TransactionRepository
	tenants   repositories.TenantRepository
	scheduler Enqueuer
	client    *http.Client
	alerter   Alerter
	logger    *zap.Logger
}

// NewService creates the webhook delivery service.
func NewService(
	txns repositories.TransactionRepository,
	tenants repositories.TenantRepository,
	scheduler Enqueuer,
	alerter Alerter,
	logger *zap.Logger,
) Service {
	if txns == nil {
		panic("transaction repository is required")
	}
	if tenants == nil {
		panic("tenant repository is required")
	}
	if scheduler == nil {
		panic("scheduler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerter == nil {
		alerter = NewLogAlerter(logger)
	}

	return &service{
		txns:      txns,
		tenants:   tenants,
		scheduler: scheduler,
		client:    &http.Client{Timeout: requestTimeout},
		alerter:   alerter,
		logger:    logger.Named("webhook"),
	}
}

func (s *service) Send(ctx context.Context, transactionID uint, event string) error {
	txn, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}

	switch txn.WebhookStatus {
	case models.WebhookStatusFailed:
		// Exhausted earlier; only Replay resets.
		return nil
	case models.WebhookStatusSent:
		// Delivered already. A redelivered job must not re-post or push the
		// attempt count past its bound; Replay resets to pending first.
		return nil
	}

	tenant, err := s.tenants.GetByID(ctx, txn.TenantID)
	if err != nil {
		return err
	}
	if tenant.WebhookURL == "" {
		s.logger.Debug("tenant has no webhook endpoint, skipping",
			zap.Uint("tenant_id", tenant.ID),
			zap.String("reference", txn.Reference))
		return nil
	}

	body, err := s.buildPayload(ctx, txn, event)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts := txn.WebhookAttempts + 1

	deliverErr := s.deliver(ctx, tenant, body, now)
	if deliverErr == nil {
		if err := s.txns.UpdateWebhookBookkeeping(ctx, txn.ID, models.WebhookStatusSent, attempts, now); err != nil {
			return err
		}
		s.logger.Info("webhook delivered",
			zap.String("reference", txn.Reference),
			zap.String("event", event),
			zap.Int("attempts", attempts))
		return nil
	}

	s.logger.Warn("webhook delivery failed",
		zap.String("reference", txn.Reference),
		zap.String("event", event),
		zap.Int("attempt", attempts),
		zap.Error(deliverErr))

	if attempts >= MaxAttempts {
		if err := s.txns.UpdateWebhookBookkeeping(ctx, txn.ID, models.WebhookStatusFailed, attempts, now); err != nil {
			return err
		}
		s.alerter.Alert(ctx, "webhook delivery abandoned", map[string]interface{}{
			"tenant_id":   tenant.ID,
			"reference":   txn.Reference,
			"event":       event,
			"attempts":    attempts,
			"last_error":  deliverErr.Error(),
			"webhook_url": tenant.WebhookURL,
		})
		return nil
	}

	if err := s.txns.UpdateWebhookBookkeeping(ctx, txn.ID, models.WebhookStatusPending, attempts, now); err != nil {
		return err
	}

	err = s.scheduler.Enqueue(ctx, JobDeliver,
		DeliverPayload{TransactionID: txn.ID, Event: event},
		queue.WithDelay(RetryDelay(attempts)))
	if err != nil {
		return fmt.Errorf("failed to schedule webhook retry: %w", err)
	}
	return nil
}

func (s *service) buildPayload(ctx context.Context, txn *models.Transaction, event string) ([]byte, error) {
	payload := Payload{
		Event: event,
		Data: PayloadData{
			ID:          txn.ID,
			Reference:   txn.Reference,
			Type:        txn.Type,
			Status:      txn.Status,
			Amount:      txn.Amount,
			Currency:    txn.Currency,
			Description: txn.Description,
			Metadata:    txn.Metadata,
			CreatedAt:   txn.CreatedAt,
			ProcessedAt: txn.ProcessedAt,
		},
		Timestamp: time.Now().UnixMilli(),
	}

	if txn.UserID != nil {
		user, err := s.tenants.GetUser(ctx, *txn.UserID)
		if err == nil {
			payload.Data.User = &PayloadUser{
				ID:        user.ID,
				Email:     user.Email,
				FirstName: user.FirstName,
				LastName:  user.LastName,
			}
		} else if !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, err
		}
	}

	return json.Marshal(payload)
}

func (s *service) deliver(ctx context.Context, tenant *models.Tenant, body []byte, at time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tenant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(tenant.WebhookSecret, body))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(at.UnixMilli(), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (s *service) Replay(ctx context.Context, tenantID uint, reference, event string) (*models.Transaction, error) {
	txn, err := s.txns.GetByReference(ctx, tenantID, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if event == "" {
		event = "transaction." + txn.Status
	}

	if err := s.txns.UpdateWebhookBookkeeping(ctx, txn.ID, models.WebhookStatusPending, 0, time.Now().UTC()); err != nil {
		return nil, err
	}
	txn.WebhookStatus = models.WebhookStatusPending
	txn.WebhookAttempts = 0

	if err := s.Send(ctx, txn.ID, event); err != nil {
		return nil, err
	}
	return txn, nil
}

// Sign computes the hex HMAC-SHA256 of body with the tenant secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an inbound signature against the tenant secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RetryDelay returns the ladder delay after the given number of attempts.
func RetryDelay(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryLadder) {
		idx = len(retryLadder) - 1
	}
	return retryLadder[idx]
}
