package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

func TestStripeGateway_ParseWebhookEvent(t *testing.T) {
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_x"})

	tests := []struct {
		name       string
		eventType  string
		wantStatus string
	}{
		{"succeeded intent", "payment_intent.succeeded", EventStatusSuccess},
		{"failed intent", "payment_intent.payment_failed", EventStatusFailed},
		{"canceled intent", "payment_intent.canceled", EventStatusFailed},
		{"in-flight intent", "payment_intent.processing", EventStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{
				"type": "` + tt.eventType + `",
				"data": {"object": {"id": "pi_123", "amount": 1000, "currency": "usd"}}
			}`)

			event, err := g.ParseWebhookEvent(payload)
			require.NoError(t, err)
			assert.Equal(t, "pi_123", event.Reference)
			assert.Equal(t, tt.wantStatus, event.Status)
			assert.Equal(t, int64(1000), event.Amount)
			assert.Equal(t, "USD", event.Currency)
		})
	}

	_, err := g.ParseWebhookEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestNormalizeIntentStatus(t *testing.T) {
	assert.Equal(t, EventStatusSuccess, normalizeIntentStatus(stripe.PaymentIntentStatusSucceeded))
	assert.Equal(t, EventStatusFailed, normalizeIntentStatus(stripe.PaymentIntentStatusCanceled))
	assert.Equal(t, EventStatusPending, normalizeIntentStatus(stripe.PaymentIntentStatusProcessing))
	assert.Equal(t, EventStatusPending, normalizeIntentStatus(stripe.PaymentIntentStatusRequiresAction))
}
