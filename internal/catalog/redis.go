package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// RedisCache shares snapshots between terminals through Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "frontcounter:catalog:"}
}

func (c *RedisCache) key(id string) string { return c.prefix + id }

func (c *RedisCache) Get(ctx context.Context, productID string) (model.CatalogSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.key(productID)).Bytes()
	if err == redis.Nil {
		return model.CatalogSnapshot{}, false, nil
	}
	if err != nil {
		return model.CatalogSnapshot{}, false, err
	}
	var s model.CatalogSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.CatalogSnapshot{}, false, err
	}
	return s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, s model.CatalogSnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(s.ProductID), payload, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = c.key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
