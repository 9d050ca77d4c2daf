package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

func signedPayload(t *testing.T, payload string) *webhook.SignedPayload {
	t.Helper()
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
}

func TestParseWebhookPaymentSucceeded(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	signed := signedPayload(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "amount": 13000}}
	}`)

	event, err := g.ParseWebhook(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	assert.Equal(t, "pi_123", event.IntentID)
	assert.Equal(t, int64(13000), event.AmountCents)
}

func TestParseWebhookBadSignature(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	signed := signedPayload(t, `{"id": "evt_1", "object": "event", "type": "payment_intent.succeeded"}`)

	_, err := g.ParseWebhook(signed.Payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestParseWebhookOtherObject(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	signed := signedPayload(t, `{
		"id": "evt_2",
		"object": "event",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "object": "charge"}}
	}`)

	event, err := g.ParseWebhook(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", event.Type)
	assert.Empty(t, event.IntentID)
}
