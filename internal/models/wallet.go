package models

import (
	"time"
)

// Wallet statuses
const (
	WalletStatusActive    = "active"
	WalletStatusSuspended = "suspended"
	WalletStatusFrozen    = "frozen"
)

// Wallet holds a single user's balance in one currency for one tenant.
// All amounts are integers in the minor currency unit. Balance mutations go
// through the ledger service only, which pairs every mutation with a
// Transaction row and bumps Version by exactly one.
type Wallet struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TenantID uint   `gorm:"not null;index;uniqueIndex:idx_wallet_owner,priority:1" json:"tenant_id"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_wallet_owner,priority:2" json:"user_id"`
	Currency string `gorm:"not null;size:3;uniqueIndex:idx_wallet_owner,priority:3" json:"currency"`

	Balance       int64 `gorm:"not null;default:0" json:"balance"`
	LedgerBalance int64 `gorm:"not null;default:0" json:"ledger_balance"`

	Status string `gorm:"not null;default:'active'" json:"status"`

	DailyLimitAmount   int64     `gorm:"not null;default:0" json:"daily_limit_amount"`
	DailyLimitUsed     int64     `gorm:"not null;default:0" json:"daily_limit_used"`
	DailyLimitReset    time.Time `json:"daily_limit_reset"`
	MonthlyLimitAmount int64     `gorm:"not null;default:0" json:"monthly_limit_amount"`
	MonthlyLimitUsed   int64     `gorm:"not null;default:0" json:"monthly_limit_used"`
	MonthlyLimitReset  time.Time `json:"monthly_limit_reset"`

	// Version is the optimistic concurrency token. Conditional writes match
	// on it and increment it in the same statement.
	Version int64 `gorm:"not null;default:0" json:"version"`

	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsActive reports whether the wallet may be debited.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// DailyHeadroom returns how much more can be debited today, treating a zero
// limit as unlimited.
func (w *Wallet) DailyHeadroom(now time.Time) int64 {
	if w.DailyLimitAmount <= 0 {
		return -1
	}
	used := w.DailyLimitUsed
	if !sameDay(w.DailyLimitReset, now) {
		used = 0
	}
	if used >= w.DailyLimitAmount {
		return 0
	}
	return w.DailyLimitAmount - used
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
