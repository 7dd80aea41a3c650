package risk

import (
	"context"
	"testing"

	"payvault/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Assess(t *testing.T) {
	s := NewService()
	user := uint(42)

	t.Run("small wallet deposit scores low", func(t *testing.T) {
		a, err := s.Assess(context.Background(), Input{
			TenantID:      1,
			UserID:        &user,
			Amount:        5_000,
			Currency:      "USD",
			Type:          models.TransactionTypeDeposit,
			PaymentMethod: models.PaymentMethodWallet,
		})
		require.NoError(t, err)
		assert.False(t, a.ShouldBlock)
		assert.Equal(t, LevelLow, a.Level)
		assert.Empty(t, a.Flags)
	})

	t.Run("very large anonymous external payout blocks", func(t *testing.T) {
		a, err := s.Assess(context.Background(), Input{
			TenantID:      1,
			Amount:        20_000_000,
			Currency:      "USD",
			Type:          models.TransactionTypeWithdrawal,
			PaymentMethod: models.PaymentMethodBank,
		})
		require.NoError(t, err)
		assert.True(t, a.ShouldBlock)
		assert.Equal(t, LevelHigh, a.Level)
		assert.Contains(t, a.Flags, "very_large_amount")
		assert.Contains(t, a.Flags, "external_payout")
		assert.Contains(t, a.Flags, "no_user_context")
	})

	t.Run("country mismatch flags without blocking alone", func(t *testing.T) {
		a, err := s.Assess(context.Background(), Input{
			TenantID:      1,
			UserID:        &user,
			Amount:        5_000,
			Currency:      "USD",
			Type:          models.TransactionTypeDeposit,
			PaymentMethod: models.PaymentMethodCard,
			Context:       models.JSON{"ip_country": "NG", "account_country": "NL"},
		})
		require.NoError(t, err)
		assert.False(t, a.ShouldBlock)
		assert.Contains(t, a.Flags, "country_mismatch")
	})

	t.Run("score is capped at 100", func(t *testing.T) {
		a, err := s.Assess(context.Background(), Input{
			TenantID:      1,
			Amount:        50_000_000,
			Type:          models.TransactionTypeWithdrawal,
			PaymentMethod: models.PaymentMethodBank,
			Context:       models.JSON{"ip_country": "NG", "account_country": "NL"},
		})
		require.NoError(t, err)
		assert.Equal(t, 100, a.Score)
		assert.True(t, a.ShouldBlock)
	})
}
