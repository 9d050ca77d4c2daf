package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "checkout:"
	intentPrefix = "checkout:intent:"
)

// RedisStore keeps sessions in Redis as JSON with a TTL matching the
// provider's authorization lifetime.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Checkout, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout session: %w", err)
	}

	var c Checkout
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &c, nil
}

// GetByIntent follows the intent index written by Put.
func (s *RedisStore) GetByIntent(ctx context.Context, intentID string) (*Checkout, error) {
	key, err := s.client.Get(ctx, intentPrefix+intentID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout session index: %w", err)
	}

	c, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.IntentID != intentID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *RedisStore) Put(ctx context.Context, c *Checkout) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode checkout session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+c.Key, raw, s.ttl)
		if c.IntentID != "" {
			pipe.Set(ctx, intentPrefix+c.IntentID, c.Key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	return nil
}
