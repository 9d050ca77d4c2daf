package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/models"
	"storefront/repository"
)

// CartService maintains the server-side cart mirror. Concurrent writers to
// the same user's cart are last-write-wins.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	now      func() time.Time
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products, now: func() time.Time { return time.Now().UTC() }}
}

func (s *CartService) List(ctx context.Context, userID string) ([]models.CartItem, error) {
	return s.carts.ListByUser(ctx, userID)
}

// Add merges req into the user's line for the same product and size.
func (s *CartService) Add(ctx context.Context, req models.AddCartItemRequest) (*models.CartItem, error) {
	if req.Quantity < 1 {
		return nil, validationf("quantity must be at least 1")
	}
	if _, err := s.products.FindByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("product %s", req.ProductID)
		}
		return nil, err
	}

	return s.carts.Upsert(ctx, &models.CartItem{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      strings.TrimSpace(req.Size),
		CreatedAt: s.now(),
	})
}

// owned loads a cart line and hides lines that belong to another user.
func (s *CartService) owned(ctx context.Context, userID, id string) error {
	item, err := s.carts.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && item.UserID != userID) {
		return notFoundf("cart item %s", id)
	}
	return err
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, id string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, validationf("Invalid quantity")
	}
	if err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	item, err := s.carts.UpdateQuantity(ctx, id, quantity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("cart item %s", id)
	}
	return item, err
}

func (s *CartService) Remove(ctx context.Context, userID, id string) error {
	if err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	err := s.carts.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf("cart item %s", id)
	}
	return err
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.DeleteByUser(ctx, userID)
}
