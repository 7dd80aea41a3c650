package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallet_DailyHeadroom(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	t.Run("zero limit is unlimited", func(t *testing.T) {
		w := Wallet{DailyLimitAmount: 0}
		assert.Equal(t, int64(-1), w.DailyHeadroom(now))
	})

	t.Run("usage within the current day binds", func(t *testing.T) {
		w := Wallet{DailyLimitAmount: 1_000, DailyLimitUsed: 400, DailyLimitReset: now}
		assert.Equal(t, int64(600), w.DailyHeadroom(now))
	})

	t.Run("maxed usage leaves no headroom", func(t *testing.T) {
		w := Wallet{DailyLimitAmount: 1_000, DailyLimitUsed: 1_200, DailyLimitReset: now}
		assert.Equal(t, int64(0), w.DailyHeadroom(now))
	})

	t.Run("yesterday's usage does not bind today", func(t *testing.T) {
		w := Wallet{
			DailyLimitAmount: 1_000,
			DailyLimitUsed:   1_000,
			DailyLimitReset:  now.AddDate(0, 0, -1),
		}
		assert.Equal(t, int64(1_000), w.DailyHeadroom(now))
	})
}

func TestWallet_IsActive(t *testing.T) {
	assert.True(t, (&Wallet{Status: WalletStatusActive}).IsActive())
	assert.False(t, (&Wallet{Status: WalletStatusSuspended}).IsActive())
	assert.False(t, (&Wallet{Status: WalletStatusFrozen}).IsActive())
}
