package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"storefront/messaging"
	"storefront/models"
	"storefront/repository"
	"storefront/session"
)

const (
	currencyUSD          = "usd"
	EventIntentSucceeded = "payment_intent.succeeded"
)

// PaymentGateway is the payment provider. The storefront never sees card data;
// it only opens authorizations and receives provider callbacks.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, params IntentParams) (*PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type IntentParams struct {
	AmountCents    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

type WebhookEvent struct {
	ID          string
	Type        string
	IntentID    string
	AmountCents int64
}

// IntentRequest is the body of POST /api/create-payment-intent. Any session
// key sent by the client is ignored; the server derives its own.
type IntentRequest struct {
	UserID string                `json:"-"`
	Amount decimal.Decimal       `json:"amount"`
	Items  []models.ManifestItem `json:"items"`
}

type IntentResponse struct {
	ClientSecret string          `json:"clientSecret"`
	IntentID     string          `json:"paymentIntentId"`
	Amount       decimal.Decimal `json:"amount"`
}

// PaymentService opens payment authorizations and relays provider callbacks.
type PaymentService struct {
	gateway    PaymentGateway
	products   repository.ProductRepository
	sessions   session.Store
	publisher  messaging.Publisher
	timeout    time.Duration
	checkDelay time.Duration
	now        func() time.Time
}

type PaymentOptions struct {
	// Timeout bounds each provider call.
	Timeout time.Duration
	// CheckDelay is when a payment_check event fires after an intent is opened.
	CheckDelay time.Duration
}

func NewPaymentService(
	gateway PaymentGateway,
	products repository.ProductRepository,
	sessions session.Store,
	publisher messaging.Publisher,
	opts PaymentOptions,
) *PaymentService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CheckDelay <= 0 {
		opts.CheckDelay = 15 * time.Minute
	}
	return &PaymentService{
		gateway:    gateway,
		products:   products,
		sessions:   sessions,
		publisher:  publisher,
		timeout:    opts.Timeout,
		checkDelay: opts.CheckDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateIntent opens one authorization per checkout session. The amount is
// re-derived from current catalog prices and must match what the shopper saw.
func (s *PaymentService) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, validationf("Invalid amount")
	}
	if !models.ValidPrice(req.Amount) {
		return nil, validationf("amount must have at most two decimals")
	}
	if len(req.Items) == 0 {
		return nil, validationf("items are required")
	}
	for i, item := range req.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, validationf("item %d: productId and a quantity of at least 1 are required", i)
		}
	}

	authoritative, err := s.priceManifest(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if !authoritative.Equal(req.Amount) {
		return nil, validationf("amount %s does not match current prices (%s)", req.Amount.StringFixed(2), authoritative.StringFixed(2))
	}

	key := models.CheckoutKey(req.UserID, req.Items, req.Amount)

	existing, err := s.sessions.Get(ctx, key)
	if err == nil && existing.UserID == req.UserID && existing.Amount.Equal(req.Amount) {
		slog.Info("Re-using payment authorization for checkout session", "payment_intent_id", existing.IntentID)
		return &IntentResponse{ClientSecret: existing.ClientSecret, IntentID: existing.IntentID, Amount: existing.Amount}, nil
	}
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Error("Failed to load checkout session", "err", err)
	}

	manifest, err := json.Marshal(req.Items)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.gateway.CreateIntent(callCtx, IntentParams{
		AmountCents:    req.Amount.Shift(2).IntPart(),
		Currency:       currencyUSD,
		Metadata:       map[string]string{"items": string(manifest), "user_id": req.UserID},
		IdempotencyKey: key,
	})
	if err != nil {
		slog.Error("Payment intent creation failed", "user_id", req.UserID, "err", err)
		return nil, ErrPaymentUnavailable
	}

	now := s.now()
	checkout := &session.Checkout{
		Key:          key,
		UserID:       req.UserID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       req.Amount,
		Items:        req.Items,
		CreatedAt:    now,
	}
	if err := s.sessions.Put(ctx, checkout); err != nil {
		// the provider idempotency key still prevents a second authorization
		slog.Error("Failed to save checkout session", "payment_intent_id", intent.ID, "err", err)
	}

	check := models.OrderEvent{
		PaymentIntentID: intent.ID,
		UserID:          req.UserID,
		Type:            models.EventPaymentCheck,
		Total:           req.Amount,
		Occurred:        now,
	}
	if err := s.publisher.PublishDelayed(ctx, check, s.checkDelay); err != nil {
		slog.Error("Failed to publish delayed payment check event", "payment_intent_id", intent.ID, "err", err)
	}

	slog.Info("Payment intent created", "payment_intent_id", intent.ID, "amount", req.Amount.StringFixed(2))
	return &IntentResponse{ClientSecret: intent.ClientSecret, IntentID: intent.ID, Amount: req.Amount}, nil
}

func (s *PaymentService) priceManifest(ctx context.Context, items []models.ManifestItem) (decimal.Decimal, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, item := range items {
		p, ok := catalog[item.ProductID]
		if !ok {
			return decimal.Zero, notFoundf("product %s", item.ProductID)
		}
		total = total.Add(models.LineTotal(p.Price, item.Quantity))
	}
	return total, nil
}

// HandleWebhook verifies a provider callback and forwards successful
// payments to the reconciler.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		slog.Warn("Rejected webhook", "err", err)
		return validationf("Webhook processing failed")
	}

	if event.Type != EventIntentSucceeded {
		slog.Debug("Ignoring webhook event", "type", event.Type, "event_id", event.ID)
		return nil
	}

	slog.Info("Payment succeeded", "payment_intent_id", event.IntentID)
	msg := models.OrderEvent{
		PaymentIntentID: event.IntentID,
		Type:            models.EventPaymentSucceeded,
		Total:           decimal.New(event.AmountCents, -2),
		Occurred:        s.now(),
	}
	if err := s.publisher.Publish(ctx, msg, messaging.PriorityHigh); err != nil {
		slog.Error("Failed to publish payment succeeded event", "payment_intent_id", event.IntentID, "err", err)
	}
	return nil
}
