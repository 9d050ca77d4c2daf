// Package memory is an in-process implementation of the repository
// interfaces with the same semantics as the MySQL one.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/models"
	"storefront/repository"
)

const featuredLimit = 8

type Store struct {
	mu       sync.Mutex
	products map[string]*product
	carts    map[string]models.CartItem
	orders   map[string]models.Order
	items    map[string][]models.OrderItem
	users    map[string]models.User
}

type product struct {
	models.Product
	deleted bool
}

func New() *Store {
	return &Store{
		products: make(map[string]*product),
		carts:    make(map[string]models.CartItem),
		orders:   make(map[string]models.Order),
		items:    make(map[string][]models.OrderItem),
		users:    make(map[string]models.User),
	}
}

func (s *Store) Products() repository.ProductRepository { return productRepo{s} }
func (s *Store) Carts() repository.CartRepository       { return cartRepo{s} }
func (s *Store) Orders() repository.OrderRepository     { return orderRepo{s} }
func (s *Store) Users() repository.UserRepository       { return userRepo{s} }

func copyProduct(p models.Product) models.Product {
	p.Images = append([]string{}, p.Images...)
	p.Sizes = append([]string{}, p.Sizes...)
	return p
}

type productRepo struct{ s *Store }

func (r productRepo) List(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(f.Search)
	out := []models.Product{}
	for _, p := range r.s.products {
		if p.deleted {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Featured && !p.Featured {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, copyProduct(p.Product))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Featured && len(out) > featuredLimit {
		out = out[:featuredLimit]
	}
	return out, nil
}

func (r productRepo) FindByID(_ context.Context, id string) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok || p.deleted {
		return nil, repository.ErrNotFound
	}
	cp := copyProduct(p.Product)
	return &cp, nil
}

func (r productRepo) FindByIDs(_ context.Context, ids []string) (map[string]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make(map[string]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && !p.deleted {
			out[id] = copyProduct(p.Product)
		}
	}
	return out, nil
}

func (r productRepo) Create(_ context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[p.ID]; ok {
		return fmt.Errorf("product %s: %w", p.ID, repository.ErrDuplicate)
	}
	r.s.products[p.ID] = &product{Product: copyProduct(*p)}
	return nil
}

func (r productRepo) Update(_ context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.products[p.ID]
	if !ok || existing.deleted {
		return repository.ErrNotFound
	}
	existing.Product = copyProduct(*p)
	return nil
}

func (r productRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok || p.deleted {
		return repository.ErrNotFound
	}
	p.deleted = true
	return nil
}

func (r productRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, p := range r.s.products {
		if !p.deleted {
			n++
		}
	}
	return n, nil
}

type cartRepo struct{ s *Store }

// joined fills display data from the catalog, including deleted products.
func (r cartRepo) joined(item models.CartItem) models.CartItem {
	if p, ok := r.s.products[item.ProductID]; ok {
		item.Name = p.Name
		item.Price = p.Price
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
	}
	return item
}

func (r cartRepo) ListByUser(_ context.Context, userID string) ([]models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []models.CartItem{}
	for _, item := range r.s.carts {
		if item.UserID == userID {
			out = append(out, r.joined(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r cartRepo) FindByID(_ context.Context, id string) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item = r.joined(item)
	return &item, nil
}

func (r cartRepo) Upsert(_ context.Context, in *models.CartItem) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[in.ProductID]; !ok {
		return nil, fmt.Errorf("product %s: foreign key violation", in.ProductID)
	}
	for id, item := range r.s.carts {
		if item.UserID == in.UserID && item.ProductID == in.ProductID && item.Size == in.Size {
			item.Quantity += in.Quantity
			r.s.carts[id] = item
			out := r.joined(item)
			return &out, nil
		}
	}
	r.s.carts[in.ID] = *in
	out := r.joined(*in)
	return &out, nil
}

func (r cartRepo) UpdateQuantity(_ context.Context, id string, quantity int) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item.Quantity = quantity
	r.s.carts[id] = item
	out := r.joined(item)
	return &out, nil
}

func (r cartRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.carts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.carts, id)
	return nil
}

func (r cartRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, item := range r.s.carts {
		if item.UserID == userID {
			delete(r.s.carts, id)
		}
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, repository.ErrDuplicate)
	}
	if o.PaymentIntentID != "" {
		for _, existing := range r.s.orders {
			if existing.PaymentIntentID == o.PaymentIntentID {
				return fmt.Errorf("payment intent %s: %w", o.PaymentIntentID, repository.ErrDuplicate)
			}
		}
	}
	header := *o
	header.Items = nil
	r.s.orders[o.ID] = header
	return nil
}

func (r orderRepo) CreateItems(_ context.Context, orderID string, items []models.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[orderID]; !ok {
		return fmt.Errorf("order %s: foreign key violation", orderID)
	}
	want := make(map[string]int)
	for _, item := range items {
		if _, ok := r.s.products[item.ProductID]; !ok {
			return fmt.Errorf("product %s: foreign key violation", item.ProductID)
		}
		want[item.ProductID] += item.Quantity
	}
	for id, qty := range want {
		if r.s.products[id].Stock < qty {
			return fmt.Errorf("product %s: %w", id, repository.ErrInsufficientStock)
		}
	}

	for id, qty := range want {
		r.s.products[id].Stock -= qty
	}
	for _, item := range items {
		item.OrderID = orderID
		r.s.items[orderID] = append(r.s.items[orderID], item)
	}
	return nil
}

func (r orderRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.orders, id)
	delete(r.s.items, id)
	return nil
}

func (r orderRepo) FindByID(_ context.Context, id string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	items := append([]models.OrderItem{}, r.s.items[id]...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProductName != items[j].ProductName {
			return items[i].ProductName < items[j].ProductName
		}
		return items[i].ID < items[j].ID
	})
	o.Items = items
	return &o, nil
}

func (r orderRepo) FindByPaymentIntent(_ context.Context, intentID string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, o := range r.s.orders {
		if intentID != "" && o.PaymentIntentID == intentID {
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r orderRepo) list(match func(models.Order) bool) []models.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []models.Order{}
	for _, o := range r.s.orders {
		if match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r orderRepo) List(_ context.Context) ([]models.Order, error) {
	return r.list(func(models.Order) bool { return true }), nil
}

func (r orderRepo) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	return r.list(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok || o.Status != from {
		return repository.ErrNotFound
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return nil
}

func (r orderRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.orders), nil
}

func (r orderRepo) Revenue(_ context.Context) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sum := decimal.Zero
	for _, o := range r.s.orders {
		sum = sum.Add(o.Total)
	}
	return sum, nil
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) FindByClerkID(_ context.Context, clerkID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.ClerkID == clerkID {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.ClerkID == u.ClerkID {
			return fmt.Errorf("user %s: %w", u.ClerkID, repository.ErrDuplicate)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.users), nil
}
