// Package risk wraps the external risk-assessment collaborator. The default
// implementation is a local heuristic scorer; production deployments swap in
// a client for the real assessor behind the same interface.
package risk

import (
	"context"

	"payvault/internal/models"
)

// Risk levels
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

const blockThreshold = 80

// Input describes the transaction being assessed.
type Input struct {
	TenantID      uint
	UserID        *uint
	Amount        int64
	Currency      string
	Type          string
	PaymentMethod string
	Context       models.JSON
}

// Assessment is the normalized assessor verdict.
type Assessment struct {
	Score       int      `json:"score"` // 0-100
	Flags       []string `json:"flags"`
	ShouldBlock bool     `json:"should_block"`
	Level       string   `json:"level"`
}

// Assessor scores a transaction before it is persisted.
type Assessor interface {
	Assess(ctx context.Context, in Input) (*Assessment, error)
}

type service struct{}

// NewService creates the default heuristic assessor.
func NewService() Assessor {
	return &service{}
}

func (s *service) Assess(_ context.Context, in Input) (*Assessment, error) {
	score := 0
	var flags []string

	// Amount bands, in minor units.
	switch {
	case in.Amount > 10_000_000:
		score += 50
		flags = append(flags, "very_large_amount")
	case in.Amount > 1_000_000:
		score += 30
		flags = append(flags, "large_amount")
	case in.Amount > 100_000:
		score += 10
	}

	if in.Type == models.TransactionTypeWithdrawal && in.PaymentMethod != models.PaymentMethodWallet {
		score += 15
		flags = append(flags, "external_payout")
	}

	if in.UserID == nil {
		score += 20
		flags = append(flags, "no_user_context")
	}

	if in.Context.GetString("ip_country") != "" && in.Context.GetString("ip_country") != in.Context.GetString("account_country") {
		score += 25
		flags = append(flags, "country_mismatch")
	}

	if score > 100 {
		score = 100
	}

	level := LevelLow
	switch {
	case score >= blockThreshold:
		level = LevelHigh
	case score >= 40:
		level = LevelMedium
	}

	return &Assessment{
		Score:       score,
		Flags:       flags,
		ShouldBlock: score >= blockThreshold,
		Level:       level,
	}, nil
}
