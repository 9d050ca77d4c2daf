package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/config"
	"storefront/messaging"
	"storefront/models"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	// delayed is false when the broker lacks the delayed message plugin;
	// delayed events then expire out of the wait queue into the order exchange.
	delayed bool

	// deferEvent parks an event that arrived before its NotBefore.
	deferEvent func(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

func NewRabbitMQ(cfg *config.Config) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}
	r.deferEvent = r.publishWait
	return r, nil
}

// waitQueue holds delayed events with a per-message TTL and no consumers.
// Expired messages dead-letter into the order exchange.
func (r *RabbitMQ) waitQueue() string {
	return r.Cfg.OrderQueue + "_wait"
}

func (r *RabbitMQ) SetupQueues() error {
	// dead-letter exchange and queue
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue+"_exchange", false, nil); err != nil {
		return err
	}

	if err := r.Channel.ExchangeDeclare(r.Cfg.OrderExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	// priority queue that dead-letters rejected messages
	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return err
	}

	r.delayed = r.setupDelayExchange()
	if !r.delayed {
		_, err := r.Channel.QueueDeclare(
			r.waitQueue(),
			true,
			false,
			false,
			false,
			amqp.Table{"x-dead-letter-exchange": r.Cfg.OrderExchange},
		)
		return err
	}
	return r.Channel.QueueBind(r.Cfg.OrderQueue, r.Cfg.OrderQueue, r.Cfg.DelayExchange, false, nil)
}

// setupDelayExchange declares the x-delayed-message exchange on a throwaway
// channel, since a failed declare closes the channel it ran on. It requires
// the rabbitmq_delayed_message_exchange plugin.
func (r *RabbitMQ) setupDelayExchange() bool {
	ch, err := r.Conn.Channel()
	if err != nil {
		slog.Warn("Failed to open channel for delayed exchange", "err", err)
		return false
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,
		false,
		false,
		false,
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		slog.Warn("Delayed exchange not supported, using a TTL wait queue", "err", err, "queue", r.waitQueue())
		return false
	}
	return true
}

func (r *RabbitMQ) Publish(ctx context.Context, event models.OrderEvent, priority uint8) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.Channel.PublishWithContext(ctx,
		r.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			Priority:     priority,
		},
	)
}

func (r *RabbitMQ) PublishDelayed(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	event.NotBefore = time.Now().Add(delay)
	if !r.delayed {
		return r.publishWait(ctx, event, delay)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.Channel.PublishWithContext(ctx,
		r.Cfg.DelayExchange,
		r.Cfg.OrderQueue,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			Headers:      amqp.Table{"x-delay": delay.Milliseconds()},
		},
	)
}

func (r *RabbitMQ) publishWait(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ttl := delay.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}

	// the default exchange routes by queue name
	return r.Channel.PublishWithContext(ctx,
		"",
		r.waitQueue(),
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			Priority:     messaging.PriorityDefault,
			Expiration:   strconv.FormatInt(ttl, 10),
		},
	)
}

// Consume delivers events from the order queue to handler. A message is
// acked on success and rejected without requeue otherwise, which routes it
// to the dead-letter queue.
func (r *RabbitMQ) Consume(ctx context.Context, handler messaging.Handler) error {
	msgs, err := r.Channel.ConsumeWithContext(ctx,
		r.Cfg.OrderQueue,
		"storefront", // consumer tag
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer shutting down", "queue", r.Cfg.OrderQueue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			r.handle(ctx, msg, handler)
		}
	}
}

func (r *RabbitMQ) handle(ctx context.Context, msg amqp.Delivery, handler messaging.Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Recovered from panic in message processing", "panic", rec)
			msg.Nack(false, false)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("Invalid message format", "body", string(msg.Body), "err", err)
		msg.Nack(false, false)
		return
	}

	// events that arrive early are parked again instead of holding up the queue
	if wait := time.Until(event.NotBefore); wait > 0 && r.deferEvent != nil {
		if err := r.deferEvent(ctx, event, wait); err != nil {
			slog.Error("Failed to defer message", "type", event.Type, "err", err)
			msg.Nack(false, true)
			return
		}
		slog.Debug("Deferred early message", "type", event.Type, "wait", wait)
		msg.Ack(false)
		return
	}

	if err := handler(ctx, event); err != nil {
		slog.Error("Error handling message", "type", event.Type, "err", err)
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// ConsumeDeadLetters hands every dead-lettered message body to handle and acks it.
func (r *RabbitMQ) ConsumeDeadLetters(ctx context.Context, handle func(body []byte)) error {
	msgs, err := r.Channel.ConsumeWithContext(ctx,
		r.Cfg.DeadLetterQueue,
		"storefront-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register dead letter consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("dead letter channel closed")
			}
			handle(msg.Body)
			msg.Ack(false)
		}
	}
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			slog.Warn("Failed to close channel", "err", err)
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			slog.Warn("Failed to close connection", "err", err)
		}
	}
}
