package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Deduper records applied webhook deliveries with a TTL. Implements the
// payments.Deduper contract: a key is only visible once Mark recorded it.
type Deduper struct {
	rdb *redis.Client
}

func NewDeduper(rdb *redis.Client) *Deduper {
	return &Deduper{rdb: rdb}
}

func (d *Deduper) Seen(ctx context.Context, key string) (bool, error) {
	return Exists(ctx, d.rdb, key)
}

func (d *Deduper) Mark(ctx context.Context, key string) error {
	return d.rdb.Set(ctx, key, "1", TTLWebhookDedup).Err()
}
