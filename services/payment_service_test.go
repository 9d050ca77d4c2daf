package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/models"
)

func (f *fixture) intentRequest(amount string) IntentRequest {
	return IntentRequest{
		UserID: f.user.ID,
		Amount: dec(amount),
		Items: []models.ManifestItem{
			{ProductID: f.productA.ID, Quantity: 2},
			{ProductID: f.productB.ID, Quantity: 1, Size: "M"},
		},
	}
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-10"} {
		t.Run(amount, func(t *testing.T) {
			f := newFixture(t)
			g := &fakeGateway{}

			_, err := newPaymentService(f, g).CreateIntent(context.Background(), f.intentRequest(amount))
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, g.callCount())
		})
	}
}

func TestCreateIntentChargesAuthoritativeTotal(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{}

	resp, err := newPaymentService(f, g).CreateIntent(context.Background(), f.intentRequest("130"))
	require.NoError(t, err)
	assert.Equal(t, "pi_test_secret", resp.ClientSecret)
	assert.Equal(t, "pi_test", resp.IntentID)

	require.Equal(t, 1, g.callCount())
	call := g.calls[0]
	assert.Equal(t, int64(13000), call.AmountCents)
	assert.Equal(t, "usd", call.Currency)
	assert.Contains(t, call.Metadata["items"], f.productA.ID)
	assert.NotEmpty(t, call.IdempotencyKey)
}

func TestCreateIntentRejectsStalePrice(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{}

	_, err := newPaymentService(f, g).CreateIntent(context.Background(), f.intentRequest("110"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, g.callCount())
}

func TestCreateIntentUnknownProduct(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{}
	req := f.intentRequest("130")
	req.Items[0].ProductID = "gone"

	_, err := newPaymentService(f, g).CreateIntent(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, g.callCount())
}

func TestCreateIntentReusesCheckoutSession(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{}
	svc := newPaymentService(f, g)

	first, err := svc.CreateIntent(context.Background(), f.intentRequest("130"))
	require.NoError(t, err)
	second, err := svc.CreateIntent(context.Background(), f.intentRequest("130"))
	require.NoError(t, err)

	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.Equal(t, 1, g.callCount())

	other := f.intentRequest("180")
	other.Items[0].Quantity = 3
	_, err = svc.CreateIntent(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, g.callCount())
}

func TestCreateIntentSessionsAreScopedToShopper(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := &fakeGateway{}
	svc := newPaymentService(f, g)

	mine, err := svc.CreateIntent(ctx, f.intentRequest("130"))
	require.NoError(t, err)

	other := f.newShopper(t, "user_clerk_2")
	req := f.intentRequest("130")
	req.UserID = other.ID
	theirs, err := svc.CreateIntent(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, mine.ClientSecret, theirs.ClientSecret)
	assert.Equal(t, 2, g.callCount())
	assert.NotEqual(t, g.calls[0].IdempotencyKey, g.calls[1].IdempotencyKey)

	stored, err := f.sessions.GetByIntent(ctx, theirs.IntentID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, stored.UserID)
}

func TestCreateIntentHidesProviderError(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{err: errBoom}

	_, err := newPaymentService(f, g).CreateIntent(context.Background(), f.intentRequest("130"))
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
	assert.NotContains(t, err.Error(), "boom")
}

func TestCreateIntentSchedulesPaymentCheck(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{}

	_, err := newPaymentService(f, g).CreateIntent(context.Background(), f.intentRequest("130"))
	require.NoError(t, err)

	checks := f.publisher.ofType(models.EventPaymentCheck)
	require.Len(t, checks, 1)
	assert.Equal(t, "pi_test", checks[0].event.PaymentIntentID)
	assert.Equal(t, 15*time.Minute, checks[0].delay)
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{event: &WebhookEvent{ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_1", AmountCents: 13000}}

	require.NoError(t, newPaymentService(f, g).HandleWebhook(context.Background(), []byte("{}"), "sig"))

	succeeded := f.publisher.ofType(models.EventPaymentSucceeded)
	require.Len(t, succeeded, 1)
	assert.Equal(t, "pi_1", succeeded[0].event.PaymentIntentID)
	assert.True(t, succeeded[0].event.Total.Equal(decimal.NewFromInt(130)))
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{event: &WebhookEvent{ID: "evt_2", Type: "charge.refunded"}}

	require.NoError(t, newPaymentService(f, g).HandleWebhook(context.Background(), []byte("{}"), "sig"))
	assert.Empty(t, f.publisher.ofType(models.EventPaymentSucceeded))
}

func TestHandleWebhookBadSignature(t *testing.T) {
	f := newFixture(t)
	g := &fakeGateway{hookErr: errBoom}

	err := newPaymentService(f, g).HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrValidation)
}
