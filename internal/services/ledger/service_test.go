package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"payvault/internal/lock"
	"payvault/internal/models"
	"payvault/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *mockWalletRepo) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWalletRepo) GetByOwner(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error) {
	args := m.Called(ctx, tenantID, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWalletRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockWalletRepo) ApplyCredit(ctx context.Context, wallet *models.Wallet, amount int64, at time.Time) error {
	args := m.Called(ctx, wallet, amount, at)
	if args.Error(0) == nil {
		wallet.Balance += amount
		wallet.LedgerBalance += amount
		wallet.Version++
	}
	return args.Error(0)
}

func (m *mockWalletRepo) ApplyDebit(ctx context.Context, wallet *models.Wallet, change repositories.BalanceChange) error {
	args := m.Called(ctx, wallet, change)
	if args.Error(0) == nil {
		wallet.Balance -= change.Amount
		wallet.LedgerBalance -= change.Amount
		wallet.Version++
	}
	return args.Error(0)
}

func (m *mockWalletRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *mockWalletRepo) ExecuteInTransaction(fn func(repositories.WalletRepository) error) error {
	m.Called(fn)
	return fn(m)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetWallet(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error) {
	args := m.Called(ctx, tenantID, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockCache) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *mockCache) InvalidateWallet(ctx context.Context, wallet *models.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *mockCache) GetBalance(ctx context.Context, walletID uint) (int64, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) SetBalance(ctx context.Context, walletID uint, balance int64) error {
	args := m.Called(ctx, walletID, balance)
	return args.Error(0)
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

type mockLocks struct {
	mock.Mock
}

func (m *mockLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockLocks) Release(ctx context.Context, key string, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func testConfig() Config {
	return Config{
		LockBackoff: time.Millisecond,
		Retry:       RetryPolicy{Backoff: time.Millisecond},
	}
}

func activeWallet() *models.Wallet {
	now := time.Now().UTC()
	return &models.Wallet{
		ID:                 7,
		TenantID:           1,
		UserID:             42,
		Currency:           "USD",
		Balance:            10_000,
		LedgerBalance:      10_000,
		Status:             models.WalletStatusActive,
		DailyLimitAmount:   50_000,
		MonthlyLimitAmount: 500_000,
		DailyLimitReset:    now,
		MonthlyLimitReset:  now,
		Version:            3,
	}
}

func expectLock(locks *mockLocks, walletID uint) {
	locks.On("Acquire", mock.Anything, lock.WalletKey(walletID), mock.Anything).Return("tok", nil).Once()
	locks.On("Release", mock.Anything, lock.WalletKey(walletID), "tok").Return(nil).Once()
}

func TestService_Credit(t *testing.T) {
	t.Run("success pairs mutation with transaction row", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		wallet := activeWallet()

		expectLock(locks, wallet.ID)
		repo.On("GetByID", mock.Anything, wallet.ID).Return(wallet, nil).Once()
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Once()
		repo.On("ApplyCredit", mock.Anything, wallet, int64(500), mock.Anything).Return(nil).Once()
		repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil).Once()
		cache.On("InvalidateWallet", mock.Anything, wallet).Return(nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		result, err := s.Credit(context.Background(), wallet.ID, 500, "top up", "TXN-abc_CREDIT")

		require.NoError(t, err)
		assert.Equal(t, int64(10_500), result.Wallet.Balance)
		assert.Equal(t, int64(4), result.Wallet.Version)
		assert.Equal(t, models.TransactionStatusCompleted, result.Transaction.Status)
		assert.Equal(t, "TXN-abc_CREDIT", result.Transaction.Reference)
		assert.Equal(t, wallet.ID, *result.Transaction.DestinationWalletID)

		repo.AssertExpectations(t)
		locks.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("rejects non-positive amount before touching the lock", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Credit(context.Background(), 7, 0, "", "REF")

		assert.ErrorIs(t, err, ErrInvalidAmount)
		locks.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wallet not found", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)

		expectLock(locks, 99)
		repo.On("GetByID", mock.Anything, uint(99)).Return(nil, repositories.ErrWalletNotFound).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Credit(context.Background(), 99, 500, "", "REF")

		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("version conflict retries then succeeds", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		wallet := activeWallet()

		expectLock(locks, wallet.ID)
		repo.On("GetByID", mock.Anything, wallet.ID).Return(wallet, nil).Twice()
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Twice()
		repo.On("ApplyCredit", mock.Anything, wallet, int64(500), mock.Anything).
			Return(repositories.ErrVersionConflict).Once()
		repo.On("ApplyCredit", mock.Anything, wallet, int64(500), mock.Anything).
			Return(nil).Once()
		repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil).Once()
		cache.On("InvalidateWallet", mock.Anything, wallet).Return(nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		result, err := s.Credit(context.Background(), wallet.ID, 500, "", "REF")

		require.NoError(t, err)
		assert.Equal(t, int64(10_500), result.Wallet.Balance)
		repo.AssertExpectations(t)
	})

	t.Run("retry budget exhausted", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		wallet := activeWallet()

		expectLock(locks, wallet.ID)
		repo.On("GetByID", mock.Anything, wallet.ID).Return(wallet, nil).Times(DefaultRetryAttempts)
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Times(DefaultRetryAttempts)
		repo.On("ApplyCredit", mock.Anything, wallet, int64(500), mock.Anything).
			Return(repositories.ErrVersionConflict).Times(DefaultRetryAttempts)

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Credit(context.Background(), wallet.ID, 500, "", "REF")

		assert.ErrorIs(t, err, ErrConcurrentModification)
		repo.AssertExpectations(t)
	})

	t.Run("lock contention fails fast", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)

		locks.On("Acquire", mock.Anything, lock.WalletKey(7), mock.Anything).
			Return("", lock.ErrNotAcquired).Times(DefaultLockAttempts)

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Credit(context.Background(), 7, 500, "", "REF")

		assert.ErrorIs(t, err, ErrWalletLocked)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		locks.AssertExpectations(t)
	})
}

func TestService_Debit(t *testing.T) {
	t.Run("success consumes the daily limit", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		wallet := activeWallet()
		wallet.DailyLimitUsed = 1_000

		expectLock(locks, wallet.ID)
		repo.On("GetByID", mock.Anything, wallet.ID).Return(wallet, nil).Once()
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Once()
		repo.On("ApplyDebit", mock.Anything, wallet, mock.MatchedBy(func(c repositories.BalanceChange) bool {
			return c.Amount == 500 && c.DailyLimitUsed == 1_500
		})).Return(nil).Once()
		repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil).Once()
		cache.On("InvalidateWallet", mock.Anything, wallet).Return(nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		result, err := s.Debit(context.Background(), wallet.ID, 500, "payout", "REF")

		require.NoError(t, err)
		assert.Equal(t, int64(9_500), result.Wallet.Balance)
		assert.Equal(t, wallet.ID, *result.Transaction.SourceWalletID)
		repo.AssertExpectations(t)
	})

	t.Run("stale daily window resets usage", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		wallet := activeWallet()
		wallet.DailyLimitUsed = wallet.DailyLimitAmount // maxed out...
		wallet.DailyLimitReset = time.Now().UTC().AddDate(0, 0, -1)

		expectLock(locks, wallet.ID)
		repo.On("GetByID", mock.Anything, wallet.ID).Return(wallet, nil).Once()
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Once()
		repo.On("ApplyDebit", mock.Anything, wallet, mock.MatchedBy(func(c repositories.BalanceChange) bool {
			return c.DailyLimitUsed == 500 // ...but yesterday's counter does not bind today
		})).Return(nil).Once()
		repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil).Once()
		cache.On("InvalidateWallet", mock.Anything, wallet).Return(nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Debit(context.Background(), wallet.ID, 500, "", "REF")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	tests := []struct {
		name    string
		mutate  func(*models.Wallet)
		amount  int64
		wantErr error
	}{
		{
			name:    "insufficient balance",
			mutate:  func(w *models.Wallet) { w.LedgerBalance = 100 },
			amount:  500,
			wantErr: ErrInsufficientBalance,
		},
		{
			name:    "suspended wallet",
			mutate:  func(w *models.Wallet) { w.Status = models.WalletStatusSuspended },
			amount:  500,
			wantErr: ErrWalletNotActive,
		},
		{
			name:    "daily limit exceeded",
			mutate:  func(w *models.Wallet) { w.DailyLimitUsed = w.DailyLimitAmount - 100 },
			amount:  500,
			wantErr: ErrDailyLimitExceeded,
		},
		{
			name:    "monthly limit exceeded",
			mutate:  func(w *models.Wallet) { w.MonthlyLimitUsed = w.MonthlyLimitAmount - 100 },
			amount:  500,
			wantErr: ErrMonthlyLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockWalletRepo)
			cache := new(mockCache)
			locks := new(mockLocks)
			wallet := activeWallet()
			tt.mutate(wallet)

			expectLock(locks, wallet.ID)
			repo.On("GetByID", mock.Anything, wallet.ID).Return(wallet, nil).Once()

			s := NewService(repo, cache, locks, testConfig(), nil)
			_, err := s.Debit(context.Background(), wallet.ID, tt.amount, "", "REF")

			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "ApplyDebit", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Transfer(t *testing.T) {
	source := func() *models.Wallet { return activeWallet() }
	dest := func() *models.Wallet {
		w := activeWallet()
		w.ID = 9
		w.UserID = 43
		return w
	}

	t.Run("success writes paired rows in one commit", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		src, dst := source(), dest()

		expectLock(locks, src.ID)
		expectLock(locks, dst.ID)
		repo.On("GetByID", mock.Anything, src.ID).Return(src, nil).Once()
		repo.On("GetByID", mock.Anything, dst.ID).Return(dst, nil).Once()
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Once()
		repo.On("ApplyDebit", mock.Anything, src, mock.Anything).Return(nil).Once()
		repo.On("ApplyCredit", mock.Anything, dst, int64(500), mock.Anything).Return(nil).Once()
		repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil).Twice()
		cache.On("InvalidateWallet", mock.Anything, src).Return(nil).Once()
		cache.On("InvalidateWallet", mock.Anything, dst).Return(nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		result, err := s.Transfer(context.Background(), src.ID, dst.ID, 500, "split the bill")

		require.NoError(t, err)
		assert.Equal(t, int64(9_500), result.Source.Balance)
		assert.Equal(t, int64(10_500), result.Destination.Balance)
		assert.True(t, strings.HasSuffix(result.DebitTransaction.Reference, TransferOutSuffix))
		assert.True(t, strings.HasSuffix(result.CreditTransaction.Reference, TransferInSuffix))
		assert.Equal(t, strings.TrimSuffix(result.DebitTransaction.Reference, TransferOutSuffix),
			strings.TrimSuffix(result.CreditTransaction.Reference, TransferInSuffix))
		repo.AssertExpectations(t)
		locks.AssertExpectations(t)
	})

	t.Run("same wallet rejected", func(t *testing.T) {
		s := NewService(new(mockWalletRepo), new(mockCache), new(mockLocks), testConfig(), nil)
		_, err := s.Transfer(context.Background(), 7, 7, 500, "")
		assert.ErrorIs(t, err, ErrSameWalletTransfer)
	})

	t.Run("tenant mismatch rejected", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		src, dst := source(), dest()
		dst.TenantID = 2

		expectLock(locks, src.ID)
		expectLock(locks, dst.ID)
		repo.On("GetByID", mock.Anything, src.ID).Return(src, nil).Once()
		repo.On("GetByID", mock.Anything, dst.ID).Return(dst, nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Transfer(context.Background(), src.ID, dst.ID, 500, "")

		assert.ErrorIs(t, err, ErrTenantMismatch)
	})

	t.Run("currency mismatch rejected", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		src, dst := source(), dest()
		dst.Currency = "EUR"

		expectLock(locks, src.ID)
		expectLock(locks, dst.ID)
		repo.On("GetByID", mock.Anything, src.ID).Return(src, nil).Once()
		repo.On("GetByID", mock.Anything, dst.ID).Return(dst, nil).Once()

		s := NewService(repo, cache, locks, testConfig(), nil)
		_, err := s.Transfer(context.Background(), src.ID, dst.ID, 500, "")

		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("locks are taken in ascending id order", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		locks := new(mockLocks)
		src, dst := source(), dest() // src.ID = 7, dst.ID = 9

		var order []string
		locks.On("Acquire", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
			Return("tok", nil).Twice()
		locks.On("Release", mock.Anything, mock.Anything, "tok").Return(nil).Twice()
		repo.On("GetByID", mock.Anything, src.ID).Return(src, nil).Once()
		repo.On("GetByID", mock.Anything, dst.ID).Return(dst, nil).Once()
		repo.On("ExecuteInTransaction", mock.Anything).Return(nil).Once()
		repo.On("ApplyDebit", mock.Anything, src, mock.Anything).Return(nil).Once()
		repo.On("ApplyCredit", mock.Anything, dst, int64(500), mock.Anything).Return(nil).Once()
		repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil).Twice()
		cache.On("InvalidateWallet", mock.Anything, mock.Anything).Return(nil).Twice()

		s := NewService(repo, cache, locks, testConfig(), nil)
		// Transfer from the higher id to the lower one; the lower lock still
		// has to come first.
		_, err := s.Transfer(context.Background(), dst.ID, src.ID, 500, "")

		require.NoError(t, err)
		require.Len(t, order, 2)
		assert.Equal(t, lock.WalletKey(src.ID), order[0])
		assert.Equal(t, lock.WalletKey(dst.ID), order[1])
	})
}

func TestService_GetWallet(t *testing.T) {
	t.Run("cache hit skips the repository", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		wallet := activeWallet()

		cache.On("GetWallet", mock.Anything, uint(1), uint(42), "USD").Return(wallet, nil).Once()

		s := NewService(repo, cache, new(mockLocks), testConfig(), nil)
		got, err := s.GetWallet(context.Background(), 1, 42, "USD")

		require.NoError(t, err)
		assert.Equal(t, wallet, got)
		repo.AssertNotCalled(t, "GetByOwner", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache miss falls back and backfills", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)
		wallet := activeWallet()

		cache.On("GetWallet", mock.Anything, uint(1), uint(42), "USD").
			Return(nil, repositories.ErrCacheMiss).Once()
		repo.On("GetByOwner", mock.Anything, uint(1), uint(42), "USD").Return(wallet, nil).Once()
		cache.On("SetWallet", mock.Anything, wallet).Return(nil).Once()

		s := NewService(repo, cache, new(mockLocks), testConfig(), nil)
		got, err := s.GetWallet(context.Background(), 1, 42, "USD")

		require.NoError(t, err)
		assert.Equal(t, wallet, got)
		cache.AssertExpectations(t)
	})

	t.Run("not found maps to the service sentinel", func(t *testing.T) {
		repo := new(mockWalletRepo)
		cache := new(mockCache)

		cache.On("GetWallet", mock.Anything, uint(1), uint(42), "USD").
			Return(nil, repositories.ErrCacheMiss).Once()
		repo.On("GetByOwner", mock.Anything, uint(1), uint(42), "USD").
			Return(nil, repositories.ErrWalletNotFound).Once()

		s := NewService(repo, cache, new(mockLocks), testConfig(), nil)
		_, err := s.GetWallet(context.Background(), 1, 42, "USD")

		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}
