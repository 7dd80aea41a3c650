package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	allowed := [][2]string{
		{TransactionStatusPending, TransactionStatusProcessing},
		{TransactionStatusPending, TransactionStatusCancelled},
		{TransactionStatusProcessing, TransactionStatusCompleted},
		{TransactionStatusProcessing, TransactionStatusFailed},
		{TransactionStatusProcessing, TransactionStatusPending},
		{TransactionStatusFailed, TransactionStatusPending},
	}
	for _, tr := range allowed {
		assert.True(t, ValidTransition(tr[0], tr[1]), "%s -> %s should be allowed", tr[0], tr[1])
	}

	denied := [][2]string{
		{TransactionStatusPending, TransactionStatusCompleted}, // nothing skips processing
		{TransactionStatusPending, TransactionStatusFailed},
		{TransactionStatusCompleted, TransactionStatusPending},
		{TransactionStatusCompleted, TransactionStatusFailed},
		{TransactionStatusCancelled, TransactionStatusPending},
		{TransactionStatusFailed, TransactionStatusCompleted},
		{TransactionStatusProcessing, TransactionStatusCancelled},
	}
	for _, tr := range denied {
		assert.False(t, ValidTransition(tr[0], tr[1]), "%s -> %s should be denied", tr[0], tr[1])
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	for _, status := range []string{
		TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled,
	} {
		txn := Transaction{Status: status}
		assert.True(t, txn.IsTerminal(), status)
	}
	for _, status := range []string{TransactionStatusPending, TransactionStatusProcessing} {
		txn := Transaction{Status: status}
		assert.False(t, txn.IsTerminal(), status)
	}
}
