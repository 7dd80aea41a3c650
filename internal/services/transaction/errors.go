package transaction

import "errors"

// Service errors
var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid transaction amount")
	ErrInvalidRequest  = errors.New("invalid transaction request")
	ErrNotFound        = errors.New("transaction not found")
	ErrInvalidStatus   = errors.New("invalid transaction status for this operation")
	ErrFraudBlocked    = errors.New("transaction blocked by risk assessment")
	ErrGatewayFailure  = errors.New("payment gateway failure")
	ErrParentNotFound  = errors.New("parent transaction not found")
	ErrRefundTooLarge  = errors.New("refund exceeds parent transaction amount")
)
