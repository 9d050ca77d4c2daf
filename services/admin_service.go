package services

import (
	"context"
	"fmt"

	"storefront/models"
	"storefront/repository"
)

// AdminService aggregates dashboard figures.
type AdminService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
}

func NewAdminService(products repository.ProductRepository, orders repository.OrderRepository, users repository.UserRepository) *AdminService {
	return &AdminService{products: products, orders: orders, users: users}
}

// Stats reports catalog size, order count, revenue across all orders and
// registered users.
func (s *AdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	products, err := s.products.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	orders, err := s.orders.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	revenue, err := s.orders.Revenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute revenue: %w", err)
	}
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return &models.AdminStats{
		TotalProducts:  products,
		TotalOrders:    orders,
		TotalRevenue:   revenue.Round(2),
		TotalCustomers: users,
	}, nil
}
