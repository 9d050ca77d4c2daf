// Package session stores checkout sessions: the payment authorization opened
// for one shopper's cart, so a repeated intent request re-uses it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/models"
)

var ErrNotFound = errors.New("checkout session not found")

type Checkout struct {
	Key          string                `json:"key"`
	UserID       string                `json:"user_id"`
	IntentID     string                `json:"intent_id"`
	ClientSecret string                `json:"client_secret"`
	Amount       decimal.Decimal       `json:"amount"`
	Items        []models.ManifestItem `json:"items"`
	CreatedAt    time.Time             `json:"created_at"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Checkout, error)
	// GetByIntent finds the session that opened the payment intent.
	GetByIntent(ctx context.Context, intentID string) (*Checkout, error)
	Put(ctx context.Context, c *Checkout) error
}

// MemoryStore keeps sessions in process. Expired entries are dropped on read.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	intents map[string]string
}

type memoryEntry struct {
	checkout  Checkout
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		intents: make(map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

func (s *MemoryStore) GetByIntent(_ context.Context, intentID string) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.intents[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	c, err := s.get(key)
	if err != nil || c.IntentID != intentID {
		delete(s.intents, intentID)
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) get(key string) (*Checkout, error) {
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	c := e.checkout
	return &c, nil
}

func (s *MemoryStore) Put(_ context.Context, c *Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[c.Key] = memoryEntry{checkout: *c, expiresAt: s.now().Add(s.ttl)}
	if c.IntentID != "" {
		s.intents[c.IntentID] = c.Key
	}
	return nil
}
