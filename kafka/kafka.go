package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"storefront/messaging"
	"storefront/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkaGo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// Broker publishes and consumes order events. Kafka has no broker-side delay,
// so delayed events go to a separate topic whose consumer waits for
// NotBefore. The main topic is never held up by them.
type Broker struct {
	writer     messageWriter
	topic      string
	delayTopic string
	newReader  func(topic string) messageReader
}

func NewBroker(brokers []string, topic, groupID string) *Broker {
	return &Broker{
		// topic is set per message
		writer: &kafkaGo.Writer{
			Addr:     kafkaGo.TCP(brokers...),
			Balancer: &kafkaGo.Hash{},
		},
		topic:      topic,
		delayTopic: topic + ".delayed",
		newReader: func(topic string) messageReader {
			return kafkaGo.NewReader(kafkaGo.ReaderConfig{
				Brokers: brokers,
				Topic:   topic,
				GroupID: groupID,
			})
		},
	}
}

func eventKey(event models.OrderEvent) []byte {
	if event.OrderID != "" {
		return []byte(event.OrderID)
	}
	return []byte(event.PaymentIntentID)
}

func (b *Broker) write(ctx context.Context, topic string, event models.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.writer.WriteMessages(ctx, kafkaGo.Message{Topic: topic, Key: eventKey(event), Value: payload})
}

func (b *Broker) Publish(ctx context.Context, event models.OrderEvent, _ uint8) error {
	return b.write(ctx, b.topic, event)
}

func (b *Broker) PublishDelayed(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	event.NotBefore = time.Now().Add(delay)
	return b.write(ctx, b.delayTopic, event)
}

// Consume reads both topics until ctx is cancelled. Offsets are committed
// after the handler returns, whether or not it failed; failures are logged.
func (b *Broker) Consume(ctx context.Context, handler messaging.Handler) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.consume(ctx, b.topic, handler, false)
	}()
	go func() {
		defer wg.Done()
		b.consume(ctx, b.delayTopic, handler, true)
	}()
	wg.Wait()
	return nil
}

// consume runs one topic. Only the delay topic waits for NotBefore; an early
// event seen on the main topic is moved to the delay topic.
func (b *Broker) consume(ctx context.Context, topic string, handler messaging.Handler, waits bool) {
	reader := b.newReader(topic)
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			slog.Error("Error reading message", "topic", topic, "err", err)
			continue
		}

		var event models.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("Invalid message format", "topic", topic, "err", err)
		} else if wait := time.Until(event.NotBefore); wait > 0 && !waits {
			if err := b.write(ctx, b.delayTopic, event); err != nil {
				slog.Error("Failed to defer message", "topic", topic, "type", event.Type, "err", err)
				continue
			}
		} else {
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
			}
			if err := handler(ctx, event); err != nil {
				slog.Error("Error handling message", "topic", topic, "type", event.Type, "err", err)
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.Error("Failed to commit offset", "topic", topic, "err", err)
		}
	}
}

func (b *Broker) Close() error {
	return b.writer.Close()
}
