package handlers

import (
	"errors"

	"payvault/internal/middleware"
	"payvault/internal/models"
	"payvault/internal/services/transaction"
	"payvault/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
)

// TransactionHandler serves transaction lifecycle endpoints.
type TransactionHandler struct {
	txns     transaction.Service
	webhooks webhook.Service
}

// NewTransactionHandler creates the transaction handler.
func NewTransactionHandler(txns transaction.Service, webhooks webhook.Service) *TransactionHandler {
	return &TransactionHandler{txns: txns, webhooks: webhooks}
}

type initiateRequest struct {
	UserID         *uint                  `json:"user_id,omitempty"`
	Type           string                 `json:"type"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	Description    string                 `json:"description"`
	PaymentMethod  string                 `json:"payment_method"`
	Provider       string                 `json:"provider,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Initiate returns 201 for a newly created transaction and 200 for an
// idempotent replay of an existing one.
func (h *TransactionHandler) Initiate(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	in := transaction.InitiateRequest{
		TenantID:      tenant.ID,
		UserID:        req.UserID,
		Type:          req.Type,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Provider:      req.Provider,
		Metadata:      models.NewJSON(req.Metadata),
	}
	if req.IdempotencyKey != "" {
		in.IdempotencyKey = &req.IdempotencyKey
	} else if headerKey := c.Get("Idempotency-Key"); headerKey != "" {
		in.IdempotencyKey = &headerKey
	}
	if in.UserID == nil {
		if id := middleware.UserIDFromContext(c); id != 0 {
			in.UserID = &id
		}
	}

	txn, created, err := h.txns.Initialize(c.Context(), in)
	if err != nil {
		return transactionError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(txn)
}

func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	txn, err := h.txns.GetByReference(c.Context(), tenant.ID, c.Params("reference"))
	if err != nil {
		return transactionError(c, err)
	}
	return c.JSON(txn)
}

func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	txn, err := h.txns.Cancel(c.Context(), tenant.ID, c.Params("reference"))
	if err != nil {
		return transactionError(c, err)
	}
	return c.JSON(txn)
}

func (h *TransactionHandler) Retry(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	txn, err := h.txns.Retry(c.Context(), tenant.ID, c.Params("reference"))
	if err != nil {
		return transactionError(c, err)
	}
	return c.JSON(txn)
}

type replayRequest struct {
	Event string `json:"event,omitempty"`
}

func (h *TransactionHandler) ReplayWebhook(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	var req replayRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	txn, err := h.webhooks.Replay(c.Context(), tenant.ID, c.Params("reference"), req.Event)
	if err != nil {
		if errors.Is(err, webhook.ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{
		"reference":      txn.Reference,
		"webhook_status": txn.WebhookStatus,
	})
}

func transactionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, transaction.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, transaction.ErrFraudBlocked):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, transaction.ErrInvalidStatus):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, transaction.ErrInvalidType),
		errors.Is(err, transaction.ErrInvalidAmount),
		errors.Is(err, transaction.ErrInvalidRequest),
		errors.Is(err, transaction.ErrParentNotFound),
		errors.Is(err, transaction.ErrRefundTooLarge):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
