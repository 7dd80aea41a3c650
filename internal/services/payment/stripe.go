package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/payout"
	"github.com/stripe/stripe-go/v72/webhook"
)

// StripeConfig holds the stripe credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type stripeGateway struct {
	cfg StripeConfig
}

// NewStripeGateway creates the stripe adapter.
func NewStripeGateway(cfg StripeConfig) Gateway {
	stripe.Key = cfg.SecretKey
	return &stripeGateway{cfg: cfg}
}

func (g *stripeGateway) Name() string { return ProviderStripe }

func (g *stripeGateway) InitializePayment(_ context.Context, req InitializeRequest) (*InitializeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(req.Amount),
		Currency:     stripe.String(strings.ToLower(req.Currency)),
		ReceiptEmail: stripe.String(req.Email),
	}
	params.AddMetadata("reference", req.Reference)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	return &InitializeResult{
		ProviderReference: pi.ID,
		AuthorizationURL:  pi.ClientSecret,
		Raw: map[string]interface{}{
			"id":     pi.ID,
			"status": string(pi.Status),
		},
	}, nil
}

func (g *stripeGateway) VerifyPayment(_ context.Context, providerReference string) (*Event, error) {
	pi, err := paymentintent.Get(providerReference, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	return &Event{
		Reference: pi.ID,
		Status:    normalizeIntentStatus(pi.Status),
		Amount:    pi.Amount,
		Currency:  strings.ToUpper(string(pi.Currency)),
	}, nil
}

func (g *stripeGateway) InitiatePayout(_ context.Context, req PayoutRequest) (*PayoutResult, error) {
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.AddMetadata("reference", req.Reference)
	if req.Destination != "" {
		params.Destination = stripe.String(req.Destination)
	}

	po, err := payout.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	return &PayoutResult{
		ProviderReference: po.ID,
		Status:            string(po.Status),
		Raw: map[string]interface{}{
			"id":     po.ID,
			"status": string(po.Status),
		},
	}, nil
}

func (g *stripeGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	if _, err := webhook.ConstructEvent(payload, signature, g.cfg.WebhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (g *stripeGateway) ParseWebhookEvent(payload []byte) (*Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}
	return stripeEventToNormalized(&event)
}

func stripeEventToNormalized(event *stripe.Event) (*Event, error) {
	var pi stripe.PaymentIntent
	if err := pi.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, fmt.Errorf("decode stripe event object: %w", err)
	}

	status := EventStatusPending
	switch event.Type {
	case "payment_intent.succeeded":
		status = EventStatusSuccess
	case "payment_intent.payment_failed", "payment_intent.canceled":
		status = EventStatusFailed
	}

	return &Event{
		Reference: pi.ID,
		Status:    status,
		Amount:    pi.Amount,
		Currency:  strings.ToUpper(string(pi.Currency)),
	}, nil
}

func normalizeIntentStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return EventStatusSuccess
	case stripe.PaymentIntentStatusCanceled:
		return EventStatusFailed
	default:
		return EventStatusPending
	}
}
