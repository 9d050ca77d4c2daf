package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/messaging"
	"storefront/models"
	"storefront/repository"
	"storefront/session"
)

var highValueOrder = decimal.NewFromInt(1000)

// Authorizations resolves the checkout session that opened a payment intent.
// session.Store satisfies it.
type Authorizations interface {
	GetByIntent(ctx context.Context, intentID string) (*session.Checkout, error)
}

// OrderService finalizes purchases and manages order status.
type OrderService struct {
	orders         repository.OrderRepository
	products       repository.ProductRepository
	carts          repository.CartRepository
	authorizations Authorizations
	publisher      messaging.Publisher
	now            func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	carts repository.CartRepository,
	authorizations Authorizations,
	publisher messaging.Publisher,
) *OrderService {
	return &OrderService{
		orders:         orders,
		products:       products,
		carts:          carts,
		authorizations: authorizations,
		publisher:      publisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder persists the order header, then its items, then clears the
// user's cart mirror. Item prices are the prices actually charged and are
// stored as-is. If the items cannot be written the header is deleted again.
// An order that references a payment intent must match the amount that
// intent authorized for the same shopper. A repeated request for the same
// payment intent returns the existing order.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	slog.Info("Service: Creating order", "user_id", req.UserID, "items", len(req.Items))

	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	if req.PaymentIntentID != "" {
		existing, err := s.orders.FindByPaymentIntent(ctx, req.PaymentIntentID)
		if err == nil {
			return s.replay(ctx, existing, req)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err := s.checkAuthorization(ctx, req); err != nil {
			return nil, err
		}
	}

	catalog, err := s.loadProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Total:           req.Total.Round(2),
		Status:          models.StatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, models.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductID:   in.ProductID,
			ProductName: catalog[in.ProductID].Name,
			Quantity:    in.Quantity,
			Price:       in.Price.Round(2),
			Size:        in.Size,
		})
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && req.PaymentIntentID != "" {
			// a concurrent request for the same payment won the insert
			if existing, findErr := s.orders.FindByPaymentIntent(ctx, req.PaymentIntentID); findErr == nil {
				return s.replay(ctx, existing, req)
			}
		}
		return nil, fmt.Errorf("failed to save order header: %w", err)
	}

	if err := s.orders.CreateItems(ctx, order.ID, items); err != nil {
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			slog.Error("Failed to remove orphaned order header", "order_id", order.ID, "err", delErr)
			return nil, fmt.Errorf("failed to save order items: %w (compensation failed: %v)", err, delErr)
		}
		slog.Warn("Order header removed after item write failure", "order_id", order.ID, "err", err)
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, validationf("insufficient stock")
		}
		return nil, fmt.Errorf("failed to save order items: %w", err)
	}
	order.Items = items

	// The order is committed at this point; a failed clear is reported but
	// does not undo it.
	if err := s.carts.DeleteByUser(ctx, req.UserID); err != nil {
		slog.Error("Failed to clear cart after order", "order_id", order.ID, "user_id", req.UserID, "err", err)
	}

	priority := uint8(messaging.PriorityDefault)
	if order.Total.GreaterThan(highValueOrder) {
		priority = messaging.PriorityHigh
	}
	event := models.OrderEvent{
		OrderID:         order.ID,
		PaymentIntentID: order.PaymentIntentID,
		UserID:          order.UserID,
		Type:            models.EventOrderCreated,
		Status:          order.Status,
		Total:           order.Total,
		Occurred:        now,
	}
	if err := s.publisher.Publish(ctx, event, priority); err != nil {
		slog.Error("Failed to publish order created event", "order_id", order.ID, "err", err)
	}

	slog.Info("Order saved", "order_id", order.ID, "total", order.Total.StringFixed(2))
	return order, nil
}

// replay answers a retried request for a payment that already has an order.
// Only the same shopper asking for the same total gets the order back.
func (s *OrderService) replay(ctx context.Context, existing *models.Order, req models.CreateOrderRequest) (*models.Order, error) {
	if existing.UserID != req.UserID || !existing.Total.Equal(req.Total) {
		slog.Warn("Rejected order for a payment that already has one",
			"payment_intent_id", req.PaymentIntentID, "user_id", req.UserID)
		return nil, conflictf("payment %s already has an order", req.PaymentIntentID)
	}
	slog.Info("Order already exists for payment (idempotency)", "order_id", existing.ID, "payment_intent_id", req.PaymentIntentID)
	return s.Get(ctx, existing.ID)
}

// checkAuthorization ties the order to what was charged: the intent must have
// been opened by this shopper for exactly the order total.
func (s *OrderService) checkAuthorization(ctx context.Context, req models.CreateOrderRequest) error {
	auth, err := s.authorizations.GetByIntent(ctx, req.PaymentIntentID)
	if errors.Is(err, session.ErrNotFound) {
		return validationf("unknown payment %s", req.PaymentIntentID)
	}
	if err != nil {
		return fmt.Errorf("failed to load payment authorization: %w", err)
	}
	if auth.UserID != req.UserID {
		slog.Warn("Order references another shopper's payment", "payment_intent_id", req.PaymentIntentID, "user_id", req.UserID)
		return validationf("unknown payment %s", req.PaymentIntentID)
	}
	if !auth.Amount.Equal(req.Total) {
		return validationf("total %s does not match the authorized amount %s", req.Total.StringFixed(2), auth.Amount.StringFixed(2))
	}
	return nil
}

func validateOrderRequest(req models.CreateOrderRequest) error {
	if req.UserID == "" {
		return validationf("userId is required")
	}
	if len(req.Items) == 0 {
		return validationf("order must contain at least one item")
	}
	if !req.PaymentMethod.Valid() {
		return validationf("unknown payment method %q", req.PaymentMethod)
	}
	if req.PaymentMethod == models.PaymentCard && req.PaymentIntentID == "" {
		return validationf("card orders require paymentIntentId")
	}

	sum := decimal.Zero
	for i, item := range req.Items {
		if item.ProductID == "" {
			return validationf("item %d: productId is required", i)
		}
		if item.Quantity < 1 {
			return validationf("item %d: quantity must be at least 1", i)
		}
		if !models.ValidPrice(item.Price) {
			return validationf("item %d: invalid price", i)
		}
		sum = sum.Add(models.LineTotal(item.Price, item.Quantity))
	}
	if !sum.Equal(req.Total) {
		return validationf("total %s does not match items total %s", req.Total.StringFixed(2), sum.StringFixed(2))
	}
	return nil
}

// loadProducts re-reads every referenced product and checks stock. Any
// unknown product fails the whole order.
func (s *OrderService) loadProducts(ctx context.Context, items []models.OrderItemRequest) (map[string]models.Product, error) {
	wanted := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := wanted[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		p, ok := catalog[id]
		if !ok {
			return nil, notFoundf("product %s", id)
		}
		if p.Stock < wanted[id] {
			return nil, validationf("insufficient stock for %s (available: %d, requested: %d)", p.Name, p.Stock, wanted[id])
		}
	}
	return catalog, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("order %s", id)
	}
	return o, err
}

func (s *OrderService) List(ctx context.Context) ([]models.Order, error) {
	return s.orders.List(ctx)
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// UpdateStatus applies one transition of the order lifecycle. Setting the
// current status again is accepted and changes nothing.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, validationf("unknown status %q", next)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidTransition, order.Status, next)
	}

	if err := s.orders.UpdateStatus(ctx, id, order.Status, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, id)
		}
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	priority := uint8(messaging.PriorityDefault)
	if next == models.StatusCancelled {
		priority = 8
	}
	event := models.OrderEvent{
		OrderID:  updated.ID,
		UserID:   updated.UserID,
		Type:     models.EventStatusUpdated,
		Status:   updated.Status,
		Total:    updated.Total,
		Occurred: s.now(),
	}
	if err := s.publisher.Publish(ctx, event, priority); err != nil {
		slog.Error("Failed to publish order updated event", "order_id", id, "err", err)
	}
	return updated, nil
}

// HasOrderForPayment reports whether an order was recorded for the payment intent.
func (s *OrderService) HasOrderForPayment(ctx context.Context, intentID string) (bool, error) {
	_, err := s.orders.FindByPaymentIntent(ctx, intentID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
