package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payvault/internal/models"
	"payvault/internal/repositories"
	"payvault/internal/services/ledger"
	"payvault/internal/services/payment"
	"payvault/internal/services/risk"
	"payvault/internal/services/webhook"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type service struct {
	txns     repositories.TransactionRepository
	ledger   ledger.Service
	gateways *payment.Registry
	risk     risk.Assessor
	payments Enqueuer
	webhooks Enqueuer
	logger   *zap.Logger
}

// NewService creates the transaction orchestrator.
func NewService(
	txns repositories.TransactionRepository,
	ledgerSvc ledger.Service,
	gateways *payment.Registry,
	riskSvc risk.Assessor,
	payments Enqueuer,
	webhooks Enqueuer,
	logger *zap.Logger,
) Service {
	if txns == nil {
		panic("transaction repository is required")
	}
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if gateways == nil {
		panic("gateway registry is required")
	}
	if riskSvc == nil {
		panic("risk assessor is required")
	}
	if payments == nil || webhooks == nil {
		panic("queues are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		txns:     txns,
		ledger:   ledgerSvc,
		gateways: gateways,
		risk:     riskSvc,
		payments: payments,
		webhooks: webhooks,
		logger:   logger.Named("orchestrator"),
	}
}

func (s *service) Initialize(ctx context.Context, req InitiateRequest) (*models.Transaction, bool, error) {
	if err := s.validateRequest(ctx, &req); err != nil {
		return nil, false, err
	}

	// At-most-once creation: an existing transaction for this key wins. A
	// record still pending may have lost its process job (the enqueue failed
	// after the insert), so kick it again; Process is status-gated, so a
	// duplicate job is harmless.
	if req.IdempotencyKey != nil {
		existing, err := s.txns.GetByIdempotencyKey(ctx, req.TenantID, *req.IdempotencyKey)
		if err == nil {
			if existing.Status == models.TransactionStatusPending {
				if qerr := s.enqueueProcess(ctx, existing); qerr != nil {
					return nil, false, qerr
				}
			}
			return existing, false, nil
		}
		if !errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, false, err
		}
	}

	assessment, err := s.risk.Assess(ctx, risk.Input{
		TenantID:      req.TenantID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Type:          req.Type,
		PaymentMethod: req.PaymentMethod,
		Context:       req.Metadata,
	})
	if err != nil {
		return nil, false, fmt.Errorf("risk assessment failed: %w", err)
	}
	if assessment.ShouldBlock {
		s.logger.Warn("transaction blocked by risk assessment",
			zap.Uint("tenant_id", req.TenantID),
			zap.Int("score", assessment.Score),
			zap.Strings("flags", assessment.Flags))
		return nil, false, ErrFraudBlocked
	}

	txn := &models.Transaction{
		Reference:      "TXN-" + uuid.NewString(),
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		Type:           req.Type,
		Status:         models.TransactionStatusPending,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		Provider:       req.Provider,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
		WebhookStatus:  models.WebhookStatusPending,
		RiskScore:      assessment.Score,
		FraudFlags:     assessment.Flags,
		Metadata:       req.Metadata,
	}
	if req.Type == models.TransactionTypeRefund {
		parent, perr := s.resolveParent(ctx, &req)
		if perr != nil {
			return nil, false, perr
		}
		txn.ParentTransactionID = &parent.ID
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		// A concurrent duplicate lost the insert race; the unique index is
		// the source of truth, so return the winner.
		if errors.Is(err, repositories.ErrDuplicateKey) && req.IdempotencyKey != nil {
			winner, werr := s.txns.GetByIdempotencyKey(ctx, req.TenantID, *req.IdempotencyKey)
			if werr != nil {
				return nil, false, werr
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	if err := s.enqueueProcess(ctx, txn); err != nil {
		// The pending record stays behind; the idempotent replay above
		// re-enqueues it on the caller's retry.
		return nil, false, err
	}

	s.logger.Info("transaction initialized",
		zap.String("reference", txn.Reference),
		zap.String("type", txn.Type),
		zap.Int64("amount", txn.Amount))
	return txn, true, nil
}

func (s *service) enqueueProcess(ctx context.Context, txn *models.Transaction) error {
	if err := s.payments.Enqueue(ctx, JobProcess, ProcessPayload{TransactionID: txn.ID}); err != nil {
		s.logger.Error("process enqueue failed",
			zap.String("reference", txn.Reference), zap.Error(err))
		return fmt.Errorf("failed to enqueue processing: %w", err)
	}
	return nil
}

func (s *service) validateRequest(ctx context.Context, req *InitiateRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	if req.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidRequest)
	}

	switch req.Type {
	case models.TransactionTypeDeposit:
		if req.PaymentMethod == "" {
			return fmt.Errorf("%w: payment method is required for deposits", ErrInvalidRequest)
		}
		if req.PaymentMethod != models.PaymentMethodWallet && req.Provider == "" {
			req.Provider = payment.ProviderMock
		}
	case models.TransactionTypeWithdrawal:
		if req.PaymentMethod == "" {
			req.PaymentMethod = models.PaymentMethodWallet
		}
	case models.TransactionTypeTransfer:
		if req.Metadata.GetUint(MetaSourceWallet) == 0 || req.Metadata.GetUint(MetaDestWallet) == 0 {
			return fmt.Errorf("%w: transfer requires %s and %s metadata",
				ErrInvalidRequest, MetaSourceWallet, MetaDestWallet)
		}
	case models.TransactionTypeRefund:
		if req.Metadata.GetString(MetaParentRef) == "" {
			return fmt.Errorf("%w: refund requires %s metadata", ErrInvalidRequest, MetaParentRef)
		}
	case models.TransactionTypeFee:
		if req.Metadata.GetUint(MetaWalletID) == 0 {
			return fmt.Errorf("%w: fee requires %s metadata", ErrInvalidRequest, MetaWalletID)
		}
	default:
		return ErrInvalidType
	}
	return nil
}

func (s *service) resolveParent(ctx context.Context, req *InitiateRequest) (*models.Transaction, error) {
	parent, err := s.txns.GetByReference(ctx, req.TenantID, req.Metadata.GetString(MetaParentRef))
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrParentNotFound
		}
		return nil, err
	}
	if parent.Status != models.TransactionStatusCompleted {
		return nil, fmt.Errorf("%w: parent is not completed", ErrInvalidStatus)
	}
	if req.Amount > parent.Amount {
		return nil, ErrRefundTooLarge
	}
	return parent, nil
}

// Process runs one claimed job. The pending->processing gate makes
// redelivery safe: a second delivery loses the gate and returns clean.
func (s *service) Process(ctx context.Context, transactionID uint) error {
	txn, err := s.txns.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return ErrNotFound
		}
		return err
	}

	err = s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusPending, models.TransactionStatusProcessing, nil)
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			s.logger.Debug("process skipped, transaction not pending",
				zap.String("reference", txn.Reference),
				zap.String("status", txn.Status))
			return nil
		}
		return err
	}
	txn.Status = models.TransactionStatusProcessing

	var procErr error
	switch txn.Type {
	case models.TransactionTypeDeposit:
		procErr = s.processDeposit(ctx, txn)
	case models.TransactionTypeWithdrawal:
		procErr = s.processWithdrawal(ctx, txn)
	case models.TransactionTypeTransfer:
		procErr = s.processTransfer(ctx, txn)
	case models.TransactionTypeRefund:
		procErr = s.processRefund(ctx, txn)
	case models.TransactionTypeFee:
		procErr = s.processFee(ctx, txn)
	default:
		procErr = ErrInvalidType
	}

	if procErr != nil {
		return s.markFailed(ctx, txn, procErr)
	}
	return nil
}

// processDeposit preserves the deposit asymmetry: wallet-method deposits
// complete synchronously, gateway deposits go back to pending and are
// credited only when the provider's verified webhook confirms the money.
func (s *service) processDeposit(ctx context.Context, txn *models.Transaction) error {
	if txn.PaymentMethod == models.PaymentMethodWallet {
		walletID, err := s.resolveWallet(ctx, txn)
		if err != nil {
			return err
		}
		result, err := s.ledger.Credit(ctx, walletID, txn.Amount, txn.Description, txn.Reference+creditSuffix)
		if err != nil {
			return err
		}
		return s.markCompleted(ctx, txn, map[string]interface{}{
			"destination_wallet_id": result.Wallet.ID,
		})
	}

	gateway, err := s.gateways.Get(txn.Provider)
	if err != nil {
		return err
	}
	result, err := gateway.InitializePayment(ctx, payment.InitializeRequest{
		Reference: txn.Reference,
		Amount:    txn.Amount,
		Currency:  txn.Currency,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	meta := models.NewJSON(txn.Metadata)
	if result.AuthorizationURL != "" {
		meta[MetaAuthorization] = result.AuthorizationURL
	}

	// Awaiting asynchronous provider confirmation; not completed and not
	// credited. ConfirmProviderEvent finishes the job.
	err = s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusProcessing, models.TransactionStatusPending,
		map[string]interface{}{
			"provider_reference": result.ProviderReference,
			"provider_response":  models.NewJSON(result.Raw),
			"metadata":           meta,
		})
	if err != nil {
		return err
	}
	txn.Status = models.TransactionStatusPending
	txn.ProviderReference = result.ProviderReference
	txn.Metadata = meta
	s.logger.Info("deposit awaiting provider confirmation",
		zap.String("reference", txn.Reference),
		zap.String("provider_reference", result.ProviderReference))
	return nil
}

func (s *service) processWithdrawal(ctx context.Context, txn *models.Transaction) error {
	walletID, err := s.resolveWallet(ctx, txn)
	if err != nil {
		return err
	}

	// Debit first: if funds or limits fail, nothing external has happened.
	result, err := s.ledger.Debit(ctx, walletID, txn.Amount, txn.Description, txn.Reference+debitSuffix)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"source_wallet_id": result.Wallet.ID,
	}
	if txn.PaymentMethod != models.PaymentMethodWallet {
		gateway, gerr := s.gateways.Get(txn.Provider)
		if gerr != nil {
			return gerr
		}
		payout, perr := gateway.InitiatePayout(ctx, payment.PayoutRequest{
			Reference: txn.Reference,
			Amount:    txn.Amount,
			Currency:  txn.Currency,
		})
		if perr != nil {
			return fmt.Errorf("%w: %v", ErrGatewayFailure, perr)
		}
		fields["provider_reference"] = payout.ProviderReference
		fields["provider_response"] = models.NewJSON(payout.Raw)
	}

	return s.markCompleted(ctx, txn, fields)
}

func (s *service) processTransfer(ctx context.Context, txn *models.Transaction) error {
	sourceID := txn.Metadata.GetUint(MetaSourceWallet)
	destID := txn.Metadata.GetUint(MetaDestWallet)

	result, err := s.ledger.Transfer(ctx, sourceID, destID, txn.Amount, txn.Description)
	if err != nil {
		return err
	}

	return s.markCompleted(ctx, txn, map[string]interface{}{
		"source_wallet_id":      result.Source.ID,
		"destination_wallet_id": result.Destination.ID,
	})
}

// processRefund credits the refund back to where the parent debited from.
func (s *service) processRefund(ctx context.Context, txn *models.Transaction) error {
	if txn.ParentTransactionID == nil {
		return ErrParentNotFound
	}
	parent, err := s.txns.GetByID(ctx, *txn.ParentTransactionID)
	if err != nil {
		return err
	}
	if parent.SourceWalletID == nil {
		return fmt.Errorf("%w: parent has no source wallet to refund", ErrInvalidRequest)
	}

	result, err := s.ledger.Credit(ctx, *parent.SourceWalletID, txn.Amount, txn.Description, txn.Reference+creditSuffix)
	if err != nil {
		return err
	}
	return s.markCompleted(ctx, txn, map[string]interface{}{
		"destination_wallet_id": result.Wallet.ID,
	})
}

func (s *service) processFee(ctx context.Context, txn *models.Transaction) error {
	walletID := txn.Metadata.GetUint(MetaWalletID)
	result, err := s.ledger.Debit(ctx, walletID, txn.Amount, txn.Description, txn.Reference+debitSuffix)
	if err != nil {
		return err
	}
	return s.markCompleted(ctx, txn, map[string]interface{}{
		"source_wallet_id": result.Wallet.ID,
		"fee_platform":     txn.Amount,
		"fee_total":        txn.Amount,
	})
}

func (s *service) resolveWallet(ctx context.Context, txn *models.Transaction) (uint, error) {
	if id := txn.Metadata.GetUint(MetaWalletID); id != 0 {
		return id, nil
	}
	if txn.UserID == nil {
		return 0, fmt.Errorf("%w: no wallet id and no user on transaction", ErrInvalidRequest)
	}
	wallet, err := s.ledger.GetWallet(ctx, txn.TenantID, *txn.UserID, txn.Currency)
	if err != nil {
		return 0, err
	}
	return wallet.ID, nil
}

func (s *service) markCompleted(ctx context.Context, txn *models.Transaction, fields map[string]interface{}) error {
	now := time.Now().UTC()
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["processed_at"] = now

	err := s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusProcessing, models.TransactionStatusCompleted, fields)
	if err != nil {
		return err
	}
	txn.Status = models.TransactionStatusCompleted
	txn.ProcessedAt = &now

	s.logger.Info("transaction completed", zap.String("reference", txn.Reference))
	s.enqueueWebhook(ctx, txn.ID, EventCompleted)
	return nil
}

func (s *service) markFailed(ctx context.Context, txn *models.Transaction, cause error) error {
	now := time.Now().UTC()
	err := s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusProcessing, models.TransactionStatusFailed,
		map[string]interface{}{
			"failure_reason": cause.Error(),
			"failed_at":      now,
		})
	if err != nil {
		// The transaction may have left processing through another path;
		// surface the original cause either way.
		s.logger.Error("failed to mark transaction failed",
			zap.String("reference", txn.Reference), zap.Error(err))
		return cause
	}
	txn.Status = models.TransactionStatusFailed
	txn.FailureReason = cause.Error()

	s.logger.Warn("transaction failed",
		zap.String("reference", txn.Reference),
		zap.String("reason", cause.Error()))
	s.enqueueWebhook(ctx, txn.ID, EventFailed)
	return nil
}

func (s *service) enqueueWebhook(ctx context.Context, transactionID uint, event string) {
	err := s.webhooks.Enqueue(ctx, webhook.JobDeliver, webhook.DeliverPayload{
		TransactionID: transactionID,
		Event:         event,
	})
	if err != nil {
		s.logger.Error("webhook enqueue failed",
			zap.Uint("transaction_id", transactionID), zap.Error(err))
	}
}

func (s *service) Cancel(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error) {
	txn, err := s.GetByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusPending, models.TransactionStatusCancelled,
		map[string]interface{}{"cancelled_at": now})
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: only pending transactions can be cancelled", ErrInvalidStatus)
		}
		return nil, err
	}
	txn.Status = models.TransactionStatusCancelled
	txn.CancelledAt = &now
	return txn, nil
}

func (s *service) Retry(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error) {
	txn, err := s.GetByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}

	err = s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusFailed, models.TransactionStatusPending,
		map[string]interface{}{"failure_reason": ""})
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: only failed transactions can be retried", ErrInvalidStatus)
		}
		return nil, err
	}
	txn.Status = models.TransactionStatusPending
	txn.FailureReason = ""

	if err := s.payments.Enqueue(ctx, JobProcess, ProcessPayload{TransactionID: txn.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue processing: %w", err)
	}
	return txn, nil
}

func (s *service) GetByReference(ctx context.Context, tenantID uint, reference string) (*models.Transaction, error) {
	txn, err := s.txns.GetByReference(ctx, tenantID, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}

// ConfirmProviderEvent completes or fails a deposit awaiting its provider.
// Replayed provider webhooks lose the status gate and are ignored.
func (s *service) ConfirmProviderEvent(ctx context.Context, provider, reference, status string) error {
	txn, err := s.txns.GetByProviderReference(ctx, provider, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return ErrNotFound
		}
		return err
	}
	if txn.IsTerminal() {
		return nil
	}

	err = s.txns.UpdateStatusGated(ctx, txn.ID,
		models.TransactionStatusPending, models.TransactionStatusProcessing, nil)
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil
		}
		return err
	}
	txn.Status = models.TransactionStatusProcessing

	if status != payment.EventStatusSuccess {
		return s.markFailed(ctx, txn, fmt.Errorf("provider reported %s", status))
	}

	walletID, err := s.resolveWallet(ctx, txn)
	if err != nil {
		return s.markFailed(ctx, txn, err)
	}
	result, err := s.ledger.Credit(ctx, walletID, txn.Amount, txn.Description, txn.Reference+creditSuffix)
	if err != nil {
		return s.markFailed(ctx, txn, err)
	}

	return s.markCompleted(ctx, txn, map[string]interface{}{
		"destination_wallet_id": result.Wallet.ID,
	})
}
