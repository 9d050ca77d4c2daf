package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/models"
	"storefront/repository"
)

// CatalogService serves the product catalog and its admin edits.
type CatalogService struct {
	products repository.ProductRepository
	now      func() time.Time
}

func NewCatalogService(products repository.ProductRepository) *CatalogService {
	return &CatalogService{products: products, now: func() time.Time { return time.Now().UTC() }}
}

func (s *CatalogService) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, validationf("unknown category %q", filter.Category)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.products.List(ctx, filter)
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("product %s", id)
	}
	return p, err
}

func (s *CatalogService) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, validationf("name is required")
	}
	if in.Description == nil {
		return nil, validationf("description is required")
	}
	if in.Price == nil {
		return nil, validationf("price is required")
	}
	if in.Category == nil {
		return nil, validationf("category is required")
	}

	now := s.now()
	p := &models.Product{
		ID:        uuid.NewString(),
		Images:    []string{},
		Sizes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyProductInput(p, in); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("Product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

// Update applies a partial edit. Order item snapshots are separate rows and
// are never touched here.
func (s *CatalogService) Update(ctx context.Context, id string, in models.ProductInput) (*models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProductInput(p, in); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("product %s", id)
		}
		return nil, err
	}
	slog.Info("Product updated", "product_id", p.ID)
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	err := s.products.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf("product %s", id)
	}
	if err == nil {
		slog.Info("Product deleted", "product_id", id)
	}
	return err
}

func applyProductInput(p *models.Product, in models.ProductInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationf("name must not be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if !models.ValidPrice(*in.Price) {
			return validationf("price must be a non-negative amount with at most two decimals")
		}
		p.Price = in.Price.Round(2)
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return validationf("unknown category %q", *in.Category)
		}
		p.Category = *in.Category
	}
	if in.Images != nil {
		p.Images = append([]string{}, in.Images...)
	}
	if in.Sizes != nil {
		p.Sizes = dedupe(in.Sizes)
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return validationf("stock must not be negative")
		}
		p.Stock = *in.Stock
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	return nil
}

// dedupe drops repeated size labels, keeping first-seen order.
func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Seed inserts the starter catalog when the store is empty.
func (s *CatalogService) Seed(ctx context.Context) error {
	count, err := s.products.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, in := range seedCatalog() {
		if _, err := s.Create(ctx, in); err != nil {
			return err
		}
	}
	slog.Info("Seeded products", "count", len(seedCatalog()))
	return nil
}

func seedCatalog() []models.ProductInput {
	item := func(name, desc, price string, cat models.Category, stock int, featured bool, sizes ...string) models.ProductInput {
		p := decimal.RequireFromString(price)
		return models.ProductInput{
			Name: &name, Description: &desc, Price: &p, Category: &cat,
			Images: []string{}, Sizes: sizes, Stock: &stock, Featured: &featured,
		}
	}
	return []models.ProductInput{
		item("Classic Biker Leather Jacket", "Full-grain lambskin with asymmetric zip.", "249.99", models.CategoryLeatherJackets, 20, true, "S", "M", "L", "XL"),
		item("Oversized Fleece Hoodie", "Brushed cotton fleece, dropped shoulders.", "59.99", models.CategoryHoodies, 80, true, "S", "M", "L"),
		item("Tailored Chino Pants", "Slim taper with stretch twill.", "69.00", models.CategoryPants, 60, false, "30", "32", "34", "36"),
		item("Wrap Midi Dress", "Fluid crepe with tie waist.", "89.50", models.CategoryWomensWear, 35, true, "XS", "S", "M"),
		item("Oxford Button-Down Shirt", "Crisp cotton oxford, regular fit.", "45.00", models.CategoryMensWear, 90, false, "M", "L", "XL"),
	}
}
