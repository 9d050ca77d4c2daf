package messaging

import (
	"context"
	"errors"
	"time"

	"storefront/models"
)

// ErrMalformed marks a message that can never be processed and must not be requeued.
var ErrMalformed = errors.New("malformed message")

// Publisher sends order events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent, priority uint8) error
	// PublishDelayed delivers event no earlier than delay from now.
	PublishDelayed(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, event models.OrderEvent) error

// Subscriber consumes order events until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, handler Handler) error
}

// NopPublisher drops every event. Used when EVENT_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.OrderEvent, uint8) error { return nil }

func (NopPublisher) PublishDelayed(context.Context, models.OrderEvent, time.Duration) error {
	return nil
}

const (
	PriorityDefault = 5
	PriorityHigh    = 9
)
