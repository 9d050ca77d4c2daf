package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storefront/messaging"
	"storefront/models"
)

var (
	unreconciledPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_unreconciled_payments_total",
			Help: "Payments with no recorded order when checked",
		},
		[]string{"event"},
	)

	deadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_dead_letters_total",
			Help: "Order events that could not be processed",
		},
	)
)

// OrderLookup reports whether an order exists for a payment intent.
type OrderLookup interface {
	HasOrderForPayment(ctx context.Context, intentID string) (bool, error)
}

// Reconciler watches for payments that were taken without an order being
// recorded. It never creates or cancels orders itself.
type Reconciler struct {
	orders OrderLookup
}

func NewReconciler(orders OrderLookup) *Reconciler {
	return &Reconciler{orders: orders}
}

// Run consumes events from sub until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, sub messaging.Subscriber) error {
	return sub.Consume(ctx, r.Handle)
}

func (r *Reconciler) Handle(ctx context.Context, event models.OrderEvent) error {
	switch event.Type {
	case models.EventOrderCreated:
		slog.Info("Handling order created", "order_id", event.OrderID, "total", event.Total.StringFixed(2))
	case models.EventStatusUpdated:
		slog.Info("Handling status update", "order_id", event.OrderID, "status", event.Status)
	case models.EventPaymentSucceeded, models.EventPaymentCheck:
		return r.checkPayment(ctx, event)
	default:
		return fmt.Errorf("%w: unknown event type %q", messaging.ErrMalformed, event.Type)
	}
	return nil
}

func (r *Reconciler) checkPayment(ctx context.Context, event models.OrderEvent) error {
	if event.PaymentIntentID == "" {
		return fmt.Errorf("%w: %s event without payment intent", messaging.ErrMalformed, event.Type)
	}

	found, err := r.orders.HasOrderForPayment(ctx, event.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to look up order for payment %s: %w", event.PaymentIntentID, err)
	}
	if found {
		slog.Debug("Payment reconciled", "payment_intent_id", event.PaymentIntentID, "event", event.Type)
		return nil
	}

	// payment_succeeded can arrive before the client posts the order; the
	// delayed payment_check is the authoritative signal.
	unreconciledPayments.WithLabelValues(event.Type).Inc()
	slog.Warn("No order recorded for payment",
		"payment_intent_id", event.PaymentIntentID,
		"event", event.Type,
		"user_id", event.UserID,
		"amount", event.Total.StringFixed(2))
	return nil
}

// DeadLetter records a message the broker gave up on.
func (r *Reconciler) DeadLetter(body []byte) {
	deadLetters.Inc()
	slog.Error("Received dead letter", "body", string(body))
}
