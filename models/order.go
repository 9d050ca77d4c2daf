package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// transitions lists the statuses reachable from each status.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCard      PaymentMethod = "card"
	PaymentJazzCash  PaymentMethod = "jazzcash"
	PaymentEasyPaisa PaymentMethod = "easypaisa"
	PaymentCOD       PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentJazzCash, PaymentEasyPaisa, PaymentCOD:
		return true
	}
	return false
}

// ShippingAddress is stored as JSON and not interpreted by the order flow.
type ShippingAddress map[string]any

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Size        string          `json:"size,omitempty"`
}

// Subtotal is the line amount at the snapshot price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return LineTotal(i.Price, i.Quantity)
}

type CreateOrderRequest struct {
	UserID          string             `json:"userId" binding:"required"`
	Total           decimal.Decimal    `json:"total"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod" binding:"required"`
	PaymentIntentID string             `json:"paymentIntentId"`
	ShippingAddress ShippingAddress    `json:"shippingAddress" binding:"required"`
	Items           []OrderItemRequest `json:"items" binding:"required,dive"`
}

type OrderItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
}

type AdminStats struct {
	TotalProducts  int             `json:"totalProducts"`
	TotalOrders    int             `json:"totalOrders"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalCustomers int             `json:"totalCustomers"`
}

type OrderEvent struct {
	OrderID         string          `json:"order_id,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	Type            string          `json:"type"` // order_created, status_updated, payment_succeeded, payment_check
	Status          OrderStatus     `json:"status,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Occurred        time.Time       `json:"occurred"`
	NotBefore       time.Time       `json:"not_before,omitempty"`
}

const (
	EventOrderCreated     = "order_created"
	EventStatusUpdated    = "status_updated"
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentCheck     = "payment_check"
)
