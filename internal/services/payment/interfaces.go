// Package payment defines the gateway contract to external payment rails
// and ships the stripe and mock provider adapters. Every adapter normalizes
// provider payloads to the same event shape so the orchestrator never
// branches on provider specifics.
package payment

import (
	"context"
	"errors"
)

// Provider names
const (
	ProviderStripe = "stripe"
	ProviderMock   = "mock"
)

// Normalized event statuses
const (
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
	EventStatusPending = "pending"
)

// Gateway errors
var (
	ErrUnknownProvider  = errors.New("unknown payment provider")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrGatewayFailure   = errors.New("payment gateway failure")
)

// InitializeRequest asks the provider to start collecting a payment.
type InitializeRequest struct {
	Reference string
	Amount    int64
	Currency  string
	Email     string
	Metadata  map[string]string
}

// InitializeResult carries the provider handle for an initialized payment.
type InitializeResult struct {
	ProviderReference string
	AuthorizationURL  string
	Raw               map[string]interface{}
}

// PayoutRequest asks the provider to move funds out.
type PayoutRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	Destination string
}

// PayoutResult carries the provider handle for an initiated payout.
type PayoutResult struct {
	ProviderReference string
	Status            string
	Raw               map[string]interface{}
}

// Event is the provider-agnostic webhook event.
type Event struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Gateway is one provider integration.
type Gateway interface {
	Name() string
	InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	VerifyPayment(ctx context.Context, providerReference string) (*Event, error)
	InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)

	// VerifyWebhookSignature must reject tampered payloads before anything
	// acts on them; an unverified payload has no side effects.
	VerifyWebhookSignature(payload []byte, signature string) error
	ParseWebhookEvent(payload []byte) (*Event, error)
}

// Registry resolves gateways by provider name.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry builds a registry from the given gateways.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// Get returns the gateway for provider, or ErrUnknownProvider.
func (r *Registry) Get(provider string) (Gateway, error) {
	g, ok := r.gateways[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return g, nil
}
