package handlers

import (
	"payvault/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Deps collects everything the router needs.
type Deps struct {
	Auth         *middleware.AuthMiddleware
	Wallets      *WalletHandler
	Transactions *TransactionHandler
	Webhooks     *ProviderWebhookHandler
}

// SetupRoutes mounts all routes on the app.
func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", Health)

	// Inbound provider callbacks are verified per provider, not by tenant
	// auth.
	app.Post("/webhooks/:provider", deps.Webhooks.Handle)

	api := app.Group("/api", deps.Auth.RequireTenant)

	api.Post("/wallets", deps.Wallets.CreateWallet)
	api.Get("/wallets/:id", deps.Wallets.GetWallet)
	api.Get("/wallets/:id/balance", deps.Wallets.GetBalance)

	api.Post("/transactions", deps.Transactions.Initiate)
	api.Get("/transactions/:reference", deps.Transactions.Get)
	api.Post("/transactions/:reference/cancel", deps.Transactions.Cancel)
	api.Post("/transactions/:reference/retry", deps.Transactions.Retry)
	api.Post("/transactions/:reference/webhook/replay", deps.Transactions.ReplayWebhook)
}

// Health reports process liveness.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
