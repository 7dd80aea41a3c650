package handlers

import (
	"errors"

	"payvault/internal/services/payment"
	"payvault/internal/services/transaction"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProviderWebhookHandler receives payment-provider callbacks. Each provider
// adapter verifies its own signature scheme before anything acts on the
// payload; an unverified payload is rejected with no side effects.
type ProviderWebhookHandler struct {
	gateways *payment.Registry
	txns     transaction.Service
	logger   *zap.Logger
}

// NewProviderWebhookHandler creates the inbound webhook handler.
func NewProviderWebhookHandler(gateways *payment.Registry, txns transaction.Service, logger *zap.Logger) *ProviderWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderWebhookHandler{gateways: gateways, txns: txns, logger: logger.Named("provider_webhook")}
}

func (h *ProviderWebhookHandler) Handle(c *fiber.Ctx) error {
	provider := c.Params("provider")
	body := c.Body()

	gateway, err := h.gateways.Get(provider)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown provider"})
	}

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		signature = c.Get("X-Webhook-Signature")
	}

	if err := gateway.VerifyWebhookSignature(body, signature); err != nil {
		h.logger.Warn("rejected provider webhook",
			zap.String("provider", provider),
			zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unparseable event"})
	}

	h.logger.Info("provider webhook received",
		zap.String("provider", provider),
		zap.String("reference", event.Reference),
		zap.String("status", event.Status))

	if err := h.txns.ConfirmProviderEvent(c.Context(), provider, event.Reference, event.Status); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			// Unknown reference: acknowledged so the provider stops
			// retrying, but nothing changed on our side.
			return c.SendStatus(fiber.StatusOK)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing failed"})
	}

	return c.SendStatus(fiber.StatusOK)
}
