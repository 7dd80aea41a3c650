// Package handlers exposes the HTTP surface: thin fiber handlers that parse
// and validate requests, then delegate to the services.
package handlers

import (
	"errors"
	"strconv"

	"payvault/internal/middleware"
	"payvault/internal/services/ledger"

	"github.com/gofiber/fiber/v2"
)

// WalletHandler serves wallet endpoints.
type WalletHandler struct {
	ledger ledger.Service
}

// NewWalletHandler creates the wallet handler.
func NewWalletHandler(ledgerSvc ledger.Service) *WalletHandler {
	return &WalletHandler{ledger: ledgerSvc}
}

type createWalletRequest struct {
	UserID       uint   `json:"user_id"`
	Currency     string `json:"currency"`
	DailyLimit   int64  `json:"daily_limit,omitempty"`
	MonthlyLimit int64  `json:"monthly_limit,omitempty"`
}

func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	var req createWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.UserID == 0 || req.Currency == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and currency are required"})
	}

	wallet, err := h.ledger.CreateWallet(c.Context(), ledger.CreateWalletInput{
		TenantID:     tenant.ID,
		UserID:       req.UserID,
		Currency:     req.Currency,
		DailyLimit:   req.DailyLimit,
		MonthlyLimit: req.MonthlyLimit,
	})
	if err != nil {
		return walletError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wallet)
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid wallet id"})
	}

	wallet, err := h.ledger.GetWalletByID(c.Context(), uint(id))
	if err != nil {
		return walletError(c, err)
	}
	if wallet.TenantID != tenant.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "wallet not found"})
	}

	return c.JSON(wallet)
}

func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	tenant := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid wallet id"})
	}

	wallet, err := h.ledger.GetWalletByID(c.Context(), uint(id))
	if err != nil {
		return walletError(c, err)
	}
	if wallet.TenantID != tenant.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "wallet not found"})
	}

	return c.JSON(fiber.Map{
		"wallet_id":      wallet.ID,
		"balance":        wallet.Balance,
		"ledger_balance": wallet.LedgerBalance,
		"currency":       wallet.Currency,
		"version":        wallet.Version,
	})
}

func walletError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrWalletNotActive),
		errors.Is(err, ledger.ErrSameWalletTransfer),
		errors.Is(err, ledger.ErrTenantMismatch),
		errors.Is(err, ledger.ErrCurrencyMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrDailyLimitExceeded),
		errors.Is(err, ledger.ErrMonthlyLimitExceeded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrWalletLocked),
		errors.Is(err, ledger.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
