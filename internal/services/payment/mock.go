package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// mockGateway is a deterministic in-process provider. Its webhooks are
// signed with hex HMAC-SHA256 over the raw body, mirroring the outbound
// webhook scheme, so end-to-end flows run without external credentials.
type mockGateway struct {
	secret []byte
}

// NewMockGateway creates the mock provider with the given webhook secret.
func NewMockGateway(secret string) Gateway {
	return &mockGateway{secret: []byte(secret)}
}

func (g *mockGateway) Name() string { return ProviderMock }

func (g *mockGateway) InitializePayment(_ context.Context, req InitializeRequest) (*InitializeResult, error) {
	ref := "MOCK-" + uuid.NewString()
	return &InitializeResult{
		ProviderReference: ref,
		AuthorizationURL:  fmt.Sprintf("https://pay.example.test/authorize/%s", ref),
		Raw: map[string]interface{}{
			"reference": req.Reference,
			"amount":    req.Amount,
			"currency":  req.Currency,
		},
	}, nil
}

func (g *mockGateway) VerifyPayment(_ context.Context, providerReference string) (*Event, error) {
	return &Event{
		Reference: providerReference,
		Status:    EventStatusSuccess,
	}, nil
}

func (g *mockGateway) InitiatePayout(_ context.Context, req PayoutRequest) (*PayoutResult, error) {
	return &PayoutResult{
		ProviderReference: "MOCK-PO-" + uuid.NewString(),
		Status:            EventStatusSuccess,
		Raw: map[string]interface{}{
			"reference": req.Reference,
			"amount":    req.Amount,
		},
	}, nil
}

func (g *mockGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *mockGateway) ParseWebhookEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode mock event: %w", err)
	}
	return &event, nil
}

// SignMockPayload produces the signature the mock gateway expects; tests and
// the seed tooling use it to fabricate provider webhooks.
func SignMockPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
