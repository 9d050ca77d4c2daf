package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"storefront/models"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a unique key, such as a
// second order for the same payment intent.
var ErrDuplicate = errors.New("duplicate key")

// ErrInsufficientStock is returned when an order line exceeds the product's stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// ProductRepository handles persistence for Products. Deleted products are
// hidden from every read but stay referenced by order items.
type ProductRepository interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// CartRepository handles the server-side cart mirror.
type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.CartItem, error)
	FindByID(ctx context.Context, id string) (*models.CartItem, error)
	// Upsert adds item, merging into an existing (user, product, size) line.
	Upsert(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (*models.CartItem, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// OrderRepository handles persistence for Orders and their items.
type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	// CreateItems writes the whole batch and decrements product stock, or
	// changes nothing.
	CreateItems(ctx context.Context, orderID string, items []models.OrderItem) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// ErrNotFound when no order with that id is currently in status from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	Count(ctx context.Context) (int, error)
	Revenue(ctx context.Context) (decimal.Decimal, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Count(ctx context.Context) (int, error)
}
