package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payvault/internal/lock"
	"payvault/internal/models"
	"payvault/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type service struct {
	repo   repositories.WalletRepository
	cache  repositories.CacheRepository
	locks  lock.Manager
	config Config
	logger *zap.Logger
}

// NewService creates the wallet ledger service.
func NewService(
	repo repositories.WalletRepository,
	cache repositories.CacheRepository,
	locks lock.Manager,
	config Config,
	logger *zap.Logger,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if locks == nil {
		panic("lock manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.LockTTL == 0 {
		config.LockTTL = DefaultLockTTL
	}
	if config.LockAttempts == 0 {
		config.LockAttempts = DefaultLockAttempts
	}
	if config.LockBackoff == 0 {
		config.LockBackoff = DefaultLockBackoff
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if config.Retry.Backoff == 0 {
		config.Retry.Backoff = DefaultRetryBackoff
	}
	if config.DefaultDailyLimit == 0 {
		config.DefaultDailyLimit = DefaultDailyLimit
	}
	if config.DefaultMonthlyLimit == 0 {
		config.DefaultMonthlyLimit = DefaultMonthlyLimit
	}

	return &service{
		repo:   repo,
		cache:  cache,
		locks:  locks,
		config: config,
		logger: logger.Named("ledger"),
	}
}

func (s *service) CreateWallet(ctx context.Context, in CreateWalletInput) (*models.Wallet, error) {
	if in.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrInvalidAmount)
	}

	now := time.Now().UTC()
	wallet := &models.Wallet{
		TenantID:           in.TenantID,
		UserID:             in.UserID,
		Currency:           in.Currency,
		Status:             models.WalletStatusActive,
		DailyLimitAmount:   in.DailyLimit,
		MonthlyLimitAmount: in.MonthlyLimit,
		DailyLimitReset:    now,
		MonthlyLimitReset:  now,
	}
	if wallet.DailyLimitAmount == 0 {
		wallet.DailyLimitAmount = s.config.DefaultDailyLimit
	}
	if wallet.MonthlyLimitAmount == 0 {
		wallet.MonthlyLimitAmount = s.config.DefaultMonthlyLimit
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		return nil, err
	}

	if err := s.cache.SetWallet(ctx, wallet); err != nil {
		s.logger.Warn("wallet cache set failed", zap.Uint("wallet_id", wallet.ID), zap.Error(err))
	}
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, tenantID, userID uint, currency string) (*models.Wallet, error) {
	if wallet, err := s.cache.GetWallet(ctx, tenantID, userID, currency); err == nil {
		return wallet, nil
	}

	wallet, err := s.repo.GetByOwner(ctx, tenantID, userID, currency)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if err := s.cache.SetWallet(ctx, wallet); err != nil {
		s.logger.Warn("wallet cache set failed", zap.Uint("wallet_id", wallet.ID), zap.Error(err))
	}
	return wallet, nil
}

func (s *service) GetWalletByID(ctx context.Context, id uint) (*models.Wallet, error) {
	wallet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) GetBalance(ctx context.Context, walletID uint) (int64, error) {
	if balance, err := s.cache.GetBalance(ctx, walletID); err == nil {
		return balance, nil
	}

	wallet, err := s.GetWalletByID(ctx, walletID)
	if err != nil {
		return 0, err
	}

	if err := s.cache.SetBalance(ctx, walletID, wallet.Balance); err != nil {
		s.logger.Warn("balance cache set failed", zap.Uint("wallet_id", walletID), zap.Error(err))
	}
	return wallet.Balance, nil
}

func (s *service) Credit(ctx context.Context, walletID uint, amount int64, description, reference string) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	token, err := s.acquireLock(ctx, walletID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, walletID, token)

	var result *Result
	err = s.retryOnConflict(ctx, func() error {
		var innerErr error
		result, innerErr = s.creditOnce(ctx, walletID, amount, description, reference)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Wallet)
	return result, nil
}

func (s *service) creditOnce(ctx context.Context, walletID uint, amount int64, description, reference string) (*Result, error) {
	wallet, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	txn := &models.Transaction{
		Reference:           reference,
		TenantID:            wallet.TenantID,
		UserID:              &wallet.UserID,
		Type:                models.TransactionTypeDeposit,
		Status:              models.TransactionStatusCompleted,
		Amount:              amount,
		Currency:            wallet.Currency,
		Description:         description,
		DestinationWalletID: &wallet.ID,
		ProcessedAt:         &now,
	}

	err = s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		if err := tx.ApplyCredit(ctx, wallet, amount, now); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	return &Result{Wallet: wallet, Transaction: txn}, nil
}

func (s *service) Debit(ctx context.Context, walletID uint, amount int64, description, reference string) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	token, err := s.acquireLock(ctx, walletID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, walletID, token)

	var result *Result
	err = s.retryOnConflict(ctx, func() error {
		var innerErr error
		result, innerErr = s.debitOnce(ctx, walletID, amount, description, reference)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Wallet)
	return result, nil
}

func (s *service) debitOnce(ctx context.Context, walletID uint, amount int64, description, reference string) (*Result, error) {
	wallet, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	change, err := s.checkDebit(wallet, amount, now)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Reference:      reference,
		TenantID:       wallet.TenantID,
		UserID:         &wallet.UserID,
		Type:           models.TransactionTypeWithdrawal,
		Status:         models.TransactionStatusCompleted,
		Amount:         amount,
		Currency:       wallet.Currency,
		Description:    description,
		SourceWalletID: &wallet.ID,
		ProcessedAt:    &now,
	}

	err = s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		if err := tx.ApplyDebit(ctx, wallet, change); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	return &Result{Wallet: wallet, Transaction: txn}, nil
}

// checkDebit validates status, balance and limits, and computes the usage
// counters for the conditional write, rolling them over when the window
// changed.
func (s *service) checkDebit(wallet *models.Wallet, amount int64, now time.Time) (repositories.BalanceChange, error) {
	var change repositories.BalanceChange

	if !wallet.IsActive() {
		return change, ErrWalletNotActive
	}
	if wallet.LedgerBalance < amount {
		return change, ErrInsufficientBalance
	}

	dailyUsed := wallet.DailyLimitUsed
	dailyReset := wallet.DailyLimitReset
	if !sameDay(dailyReset, now) {
		dailyUsed = 0
		dailyReset = now
	}
	if wallet.DailyLimitAmount > 0 && dailyUsed+amount > wallet.DailyLimitAmount {
		return change, ErrDailyLimitExceeded
	}

	monthlyUsed := wallet.MonthlyLimitUsed
	monthlyReset := wallet.MonthlyLimitReset
	if !sameMonth(monthlyReset, now) {
		monthlyUsed = 0
		monthlyReset = now
	}
	if wallet.MonthlyLimitAmount > 0 && monthlyUsed+amount > wallet.MonthlyLimitAmount {
		return change, ErrMonthlyLimitExceeded
	}

	return repositories.BalanceChange{
		Amount:            amount,
		DailyLimitUsed:    dailyUsed + amount,
		DailyLimitReset:   dailyReset,
		MonthlyLimitUsed:  monthlyUsed + amount,
		MonthlyLimitReset: monthlyReset,
		At:                now,
	}, nil
}

func (s *service) Transfer(ctx context.Context, sourceID, destID uint, amount int64, description string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if sourceID == destID {
		return nil, ErrSameWalletTransfer
	}

	// Lock ids in ascending order so two opposite transfers cannot deadlock.
	first, second := sourceID, destID
	if second < first {
		first, second = second, first
	}

	firstToken, err := s.acquireLock(ctx, first)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, first, firstToken)

	secondToken, err := s.acquireLock(ctx, second)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, second, secondToken)

	var result *TransferResult
	err = s.retryOnConflict(ctx, func() error {
		var innerErr error
		result, innerErr = s.transferOnce(ctx, sourceID, destID, amount, description)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.Source)
	s.invalidate(ctx, result.Destination)
	return result, nil
}

func (s *service) transferOnce(ctx context.Context, sourceID, destID uint, amount int64, description string) (*TransferResult, error) {
	source, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, fmt.Errorf("source: %w", ErrWalletNotFound)
		}
		return nil, err
	}
	dest, err := s.repo.GetByID(ctx, destID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, fmt.Errorf("destination: %w", ErrWalletNotFound)
		}
		return nil, err
	}

	if source.TenantID != dest.TenantID {
		return nil, ErrTenantMismatch
	}
	if source.Currency != dest.Currency {
		return nil, ErrCurrencyMismatch
	}

	now := time.Now().UTC()
	change, err := s.checkDebit(source, amount, now)
	if err != nil {
		return nil, err
	}

	baseRef := newTransferReference()
	debitTxn := &models.Transaction{
		Reference:           baseRef + TransferOutSuffix,
		TenantID:            source.TenantID,
		UserID:              &source.UserID,
		Type:                models.TransactionTypeTransfer,
		Status:              models.TransactionStatusCompleted,
		Amount:              amount,
		Currency:            source.Currency,
		Description:         description,
		SourceWalletID:      &source.ID,
		DestinationWalletID: &dest.ID,
		ProcessedAt:         &now,
	}
	creditTxn := &models.Transaction{
		Reference:           baseRef + TransferInSuffix,
		TenantID:            dest.TenantID,
		UserID:              &dest.UserID,
		Type:                models.TransactionTypeTransfer,
		Status:              models.TransactionStatusCompleted,
		Amount:              amount,
		Currency:            dest.Currency,
		Description:         description,
		SourceWalletID:      &source.ID,
		DestinationWalletID: &dest.ID,
		ProcessedAt:         &now,
	}

	// One commit for both sides: a destination failure rolls back the
	// source debit, so readers never observe a half-applied transfer.
	err = s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		if err := tx.ApplyDebit(ctx, source, change); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, debitTxn); err != nil {
			return err
		}
		if err := tx.ApplyCredit(ctx, dest, amount, now); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, creditTxn)
	})
	if err != nil {
		return nil, err
	}

	return &TransferResult{
		Source:            source,
		Destination:       dest,
		DebitTransaction:  debitTxn,
		CreditTransaction: creditTxn,
	}, nil
}

func (s *service) SuspendWallet(ctx context.Context, walletID uint, reason string) error {
	wallet, err := s.GetWalletByID(ctx, walletID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, walletID, models.WalletStatusSuspended); err != nil {
		return err
	}
	s.logger.Info("wallet suspended",
		zap.Uint("wallet_id", walletID),
		zap.String("reason", reason))
	s.invalidate(ctx, wallet)
	return nil
}

func (s *service) ResumeWallet(ctx context.Context, walletID uint) error {
	wallet, err := s.GetWalletByID(ctx, walletID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, walletID, models.WalletStatusActive); err != nil {
		return err
	}
	s.invalidate(ctx, wallet)
	return nil
}

// acquireLock makes a small bounded number of attempts before failing fast
// with ErrWalletLocked; callers never block indefinitely on a hot wallet.
func (s *service) acquireLock(ctx context.Context, walletID uint) (string, error) {
	key := lock.WalletKey(walletID)
	var lastErr error
	for attempt := 0; attempt < s.config.LockAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.config.LockBackoff):
			}
		}
		token, err := s.locks.Acquire(ctx, key, s.config.LockTTL)
		if err == nil {
			return token, nil
		}
		lastErr = err
		if !errors.Is(err, lock.ErrNotAcquired) {
			return "", err
		}
	}
	s.logger.Debug("lock contention", zap.Uint("wallet_id", walletID), zap.Error(lastErr))
	return "", ErrWalletLocked
}

func (s *service) releaseLock(ctx context.Context, walletID uint, token string) {
	if err := s.locks.Release(ctx, lock.WalletKey(walletID), token); err != nil {
		if !errors.Is(err, lock.ErrNotOwned) {
			s.logger.Warn("lock release failed", zap.Uint("wallet_id", walletID), zap.Error(err))
		}
	}
}

// retryOnConflict re-runs fn on version conflicts up to the retry budget.
// Any other error propagates immediately.
func (s *service) retryOnConflict(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.config.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.Retry.Backoff):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return err
		}
		lastErr = err
	}
	s.logger.Warn("version retry budget exhausted", zap.Error(lastErr))
	return ErrConcurrentModification
}

func (s *service) invalidate(ctx context.Context, wallet *models.Wallet) {
	if err := s.cache.InvalidateWallet(ctx, wallet); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Uint("wallet_id", wallet.ID), zap.Error(err))
	}
}

func newTransferReference() string {
	return "TRF-" + uuid.NewString()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}
