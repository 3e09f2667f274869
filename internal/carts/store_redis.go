package carts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resqbox/resqbox/internal/redisx"
)

// RedisStore keeps each cart as a JSON document under cart:{customer_id}.
// The key TTL carries a grace over the logical ExpiresAt so an expired cart
// is still reported as expired instead of silently vanishing.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, customerID string) (*Cart, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(redisx.KeyCart, customerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, cart Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	ttl := time.Until(cart.ExpiresAt) + redisx.TTLCartGrace
	if ttl <= 0 {
		ttl = redisx.TTLCartGrace
	}
	if err := s.rdb.Set(ctx, fmt.Sprintf(redisx.KeyCart, cart.CustomerID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, customerID string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(redisx.KeyCart, customerID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
