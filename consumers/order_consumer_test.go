package consumers

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/messaging"
	"storefront/models"
)

type fakeLookup struct {
	orders map[string]bool
	err    error
}

func (f *fakeLookup) HasOrderForPayment(_ context.Context, id string) (bool, error) {
	return f.orders[id], f.err
}

func TestReconcilerCountsPaymentsWithoutOrder(t *testing.T) {
	r := NewReconciler(&fakeLookup{orders: map[string]bool{"pi_ok": true}})
	before := testutil.ToFloat64(unreconciledPayments.WithLabelValues(models.EventPaymentCheck))

	require.NoError(t, r.Handle(context.Background(), models.OrderEvent{Type: models.EventPaymentCheck, PaymentIntentID: "pi_ok"}))
	assert.Equal(t, before, testutil.ToFloat64(unreconciledPayments.WithLabelValues(models.EventPaymentCheck)))

	require.NoError(t, r.Handle(context.Background(), models.OrderEvent{Type: models.EventPaymentCheck, PaymentIntentID: "pi_lost"}))
	assert.Equal(t, before+1, testutil.ToFloat64(unreconciledPayments.WithLabelValues(models.EventPaymentCheck)))
}

func TestReconcilerLookupError(t *testing.T) {
	r := NewReconciler(&fakeLookup{err: errors.New("db down")})

	err := r.Handle(context.Background(), models.OrderEvent{Type: models.EventPaymentSucceeded, PaymentIntentID: "pi_1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, messaging.ErrMalformed)
}

func TestReconcilerRejectsMalformed(t *testing.T) {
	r := NewReconciler(&fakeLookup{})

	assert.ErrorIs(t, r.Handle(context.Background(), models.OrderEvent{Type: "bogus"}), messaging.ErrMalformed)
	assert.ErrorIs(t, r.Handle(context.Background(), models.OrderEvent{Type: models.EventPaymentCheck}), messaging.ErrMalformed)
}

func TestReconcilerIgnoresOrderEvents(t *testing.T) {
	r := NewReconciler(&fakeLookup{})

	assert.NoError(t, r.Handle(context.Background(), models.OrderEvent{Type: models.EventOrderCreated, OrderID: "o1"}))
	assert.NoError(t, r.Handle(context.Background(), models.OrderEvent{Type: models.EventStatusUpdated, OrderID: "o1", Status: models.StatusShipped}))
}

func TestDeadLetterCounted(t *testing.T) {
	r := NewReconciler(&fakeLookup{})
	before := testutil.ToFloat64(deadLetters)

	r.DeadLetter([]byte(`{"type":"order_created"}`))
	assert.Equal(t, before+1, testutil.ToFloat64(deadLetters))
}
