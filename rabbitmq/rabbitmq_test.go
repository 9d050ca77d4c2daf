package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/config"
	"storefront/models"
)

type acks struct {
	acked, nacked, requeued int
}

func (a *acks) Ack(uint64, bool) error { a.acked++; return nil }

func (a *acks) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *acks) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func delivery(t *testing.T, a *acks, event models.OrderEvent) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: a, Body: body}
}

type deferred struct {
	event models.OrderEvent
	delay time.Duration
}

func newConsumer(parked *[]deferred) *RabbitMQ {
	return &RabbitMQ{
		Cfg: &config.Config{OrderQueue: "orders"},
		deferEvent: func(_ context.Context, event models.OrderEvent, delay time.Duration) error {
			*parked = append(*parked, deferred{event, delay})
			return nil
		},
	}
}

func TestHandle_EarlyEventIsDeferredNotHeld(t *testing.T) {
	var parked []deferred
	r := newConsumer(&parked)

	var handled []string
	handler := func(_ context.Context, e models.OrderEvent) error {
		handled = append(handled, e.Type)
		return nil
	}

	early, now := &acks{}, &acks{}
	start := time.Now()
	r.handle(context.Background(), delivery(t, early, models.OrderEvent{
		Type: models.EventPaymentCheck, PaymentIntentID: "pi_1", NotBefore: time.Now().Add(time.Hour),
	}), handler)
	r.handle(context.Background(), delivery(t, now, models.OrderEvent{
		Type: models.EventOrderCreated, OrderID: "order-1",
	}), handler)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{models.EventOrderCreated}, handled)
	assert.Equal(t, 1, early.acked)
	assert.Equal(t, 1, now.acked)

	require.Len(t, parked, 1)
	assert.Equal(t, "pi_1", parked[0].event.PaymentIntentID)
	assert.InDelta(t, time.Hour.Seconds(), parked[0].delay.Seconds(), 5)
}

func TestHandle_DueEventIsHandled(t *testing.T) {
	var parked []deferred
	r := newConsumer(&parked)

	a := &acks{}
	called := false
	r.handle(context.Background(), delivery(t, a, models.OrderEvent{
		Type: models.EventPaymentCheck, NotBefore: time.Now().Add(-time.Second),
	}), func(context.Context, models.OrderEvent) error {
		called = true
		return nil
	})

	assert.True(t, called)
	assert.Empty(t, parked)
	assert.Equal(t, 1, a.acked)
}

func TestHandle_FailuresAreDeadLettered(t *testing.T) {
	var parked []deferred
	r := newConsumer(&parked)

	bad := &acks{}
	r.handle(context.Background(), amqp.Delivery{Acknowledger: bad, Body: []byte("{")}, nil)
	assert.Equal(t, 1, bad.nacked)
	assert.Zero(t, bad.requeued)

	failed := &acks{}
	r.handle(context.Background(), delivery(t, failed, models.OrderEvent{Type: models.EventOrderCreated}),
		func(context.Context, models.OrderEvent) error { return assert.AnError })
	assert.Equal(t, 1, failed.nacked)
	assert.Zero(t, failed.requeued)

	panicked := &acks{}
	r.handle(context.Background(), delivery(t, panicked, models.OrderEvent{Type: models.EventOrderCreated}),
		func(context.Context, models.OrderEvent) error { panic("boom") })
	assert.Equal(t, 1, panicked.nacked)
}

func TestHandle_DeferFailureRequeues(t *testing.T) {
	r := &RabbitMQ{
		Cfg: &config.Config{OrderQueue: "orders"},
		deferEvent: func(context.Context, models.OrderEvent, time.Duration) error {
			return assert.AnError
		},
	}
	a := &acks{}
	r.handle(context.Background(), delivery(t, a, models.OrderEvent{
		Type: models.EventPaymentCheck, NotBefore: time.Now().Add(time.Minute),
	}), func(context.Context, models.OrderEvent) error {
		t.Fatal("handler must not run before NotBefore")
		return nil
	})
	assert.Equal(t, 1, a.requeued)
	assert.Zero(t, a.acked)
}

func TestWaitQueueName(t *testing.T) {
	r := &RabbitMQ{Cfg: &config.Config{OrderQueue: "order_queue"}}
	assert.Equal(t, "order_queue_wait", r.waitQueue())
}
