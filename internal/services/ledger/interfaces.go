package ledger

import (
	"context"

	"payvault/internal/models"
)

// Service owns every balance mutation. Each mutating call runs under a
// distributed lease and a version-matched conditional write, and pairs the
// balance change with exactly one transaction row in the same commit.
type Service interface {
	CreateWallet(ctx context.Context, in CreateWalletInput) (*models.Wallet, error)
	GetWallet(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error)
	GetWalletByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetBalance(ctx context.Context, walletID uint) (int64, error)

	Credit(ctx context.Context, walletID uint, amount int64, description, reference string) (*Result, error)
	Debit(ctx context.Context, walletID uint, amount int64, description, reference string) (*Result, error)
	Transfer(ctx context.Context, sourceID, destID uint, amount int64, description string) (*TransferResult, error)

	SuspendWallet(ctx context.Context, walletID uint, reason string) error
	ResumeWallet(ctx context.Context, walletID uint) error
}
