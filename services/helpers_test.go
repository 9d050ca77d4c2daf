package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/repository"
	"storefront/repository/memory"
	"storefront/session"
)

type published struct {
	event    models.OrderEvent
	priority uint8
	delay    time.Duration
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.OrderEvent, priority uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: e, priority: priority})
	return p.err
}

func (p *recordingPublisher) PublishDelayed(_ context.Context, e models.OrderEvent, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: e, delay: d})
	return p.err
}

func (p *recordingPublisher) ofType(t string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// failingItems makes CreateItems fail after the header has been written.
// A non-nil deleteErr also fails the compensating delete.
type failingItems struct {
	repository.OrderRepository
	err       error
	deleteErr error
}

func (f failingItems) CreateItems(context.Context, string, []models.OrderItem) error {
	return f.err
}

func (f failingItems) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.OrderRepository.Delete(ctx, id)
}

// racingOrders hides existing orders from the first lookup, as if a
// concurrent request inserted its order in between.
type racingOrders struct {
	repository.OrderRepository
	mu      sync.Mutex
	skipped bool
}

func (r *racingOrders) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	r.mu.Lock()
	first := !r.skipped
	r.skipped = true
	r.mu.Unlock()
	if first {
		return nil, repository.ErrNotFound
	}
	return r.OrderRepository.FindByPaymentIntent(ctx, intentID)
}

type fixture struct {
	store     *memory.Store
	sessions  *session.MemoryStore
	publisher *recordingPublisher
	catalog   *CatalogService
	carts     *CartService
	orders    *OrderService
	user      *models.User
	productA  *models.Product
	productB  *models.Product
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	sessions := session.NewMemoryStore(time.Hour)
	pub := &recordingPublisher{}

	f := &fixture{
		store:     store,
		sessions:  sessions,
		publisher: pub,
		catalog:   NewCatalogService(store.Products()),
		carts:     NewCartService(store.Carts(), store.Products()),
		orders:    NewOrderService(store.Orders(), store.Products(), store.Carts(), sessions, pub),
	}

	users := NewUserService(store.Users(), nil)
	u, _, err := users.Sync(ctx, models.SyncUserRequest{ClerkID: "user_clerk_1", Email: "shopper@example.com"})
	require.NoError(t, err)
	f.user = u

	f.productA = f.createProduct(t, "Product A", "50.00", 10, nil)
	f.productB = f.createProduct(t, "Product B", "30.00", 5, []string{"S", "M"})
	f.authorize(t, "pi_scenario", f.user.ID, "130")
	return f
}

// authorize records a checkout session as CreateIntent would.
func (f *fixture) authorize(t *testing.T, intentID, userID, amount string) {
	t.Helper()
	require.NoError(t, f.sessions.Put(context.Background(), &session.Checkout{
		Key:      "key_" + intentID,
		UserID:   userID,
		IntentID: intentID,
		Amount:   dec(amount),
	}))
}

func (f *fixture) newShopper(t *testing.T, clerkID string) *models.User {
	t.Helper()
	u, _, err := NewUserService(f.store.Users(), nil).Sync(context.Background(),
		models.SyncUserRequest{ClerkID: clerkID, Email: clerkID + "@example.com"})
	require.NoError(t, err)
	return u
}

func (f *fixture) createProduct(t *testing.T, name, price string, stock int, sizes []string) *models.Product {
	t.Helper()
	desc := name + " description"
	p := dec(price)
	cat := models.CategoryHoodies
	created, err := f.catalog.Create(context.Background(), models.ProductInput{
		Name: &name, Description: &desc, Price: &p, Category: &cat, Stock: &stock, Sizes: sizes,
	})
	require.NoError(t, err)
	return created
}

// scenarioRequest is two of A at $50 plus one B in size M at $30.
func (f *fixture) scenarioRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		UserID:          f.user.ID,
		Total:           dec("130"),
		PaymentMethod:   models.PaymentCard,
		PaymentIntentID: "pi_scenario",
		ShippingAddress: models.ShippingAddress{"city": "Lahore"},
		Items: []models.OrderItemRequest{
			{ProductID: f.productA.ID, Quantity: 2, Price: dec("50")},
			{ProductID: f.productB.ID, Quantity: 1, Price: dec("30"), Size: "M"},
		},
	}
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []IntentParams
	err     error
	event   *WebhookEvent
	hookErr error
}

func (g *fakeGateway) CreateIntent(_ context.Context, p IntentParams) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, p)
	if g.err != nil {
		return nil, g.err
	}
	id := "pi_test"
	if n := len(g.calls); n > 1 {
		id = fmt.Sprintf("pi_test_%d", n)
	}
	return &PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	if g.hookErr != nil {
		return nil, g.hookErr
	}
	return g.event, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func newPaymentService(f *fixture, g *fakeGateway) *PaymentService {
	return NewPaymentService(g, f.store.Products(), f.sessions, f.publisher, PaymentOptions{})
}

var errBoom = errors.New("boom")
