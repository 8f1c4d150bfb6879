package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// LRUCache is an in-process cache bounded by size and entry age.
type LRUCache struct {
	lru *expirable.LRU[string, model.CatalogSnapshot]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, model.CatalogSnapshot](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, productID string) (model.CatalogSnapshot, bool, error) {
	s, ok := c.lru.Get(productID)
	return s, ok, nil
}

func (c *LRUCache) Set(_ context.Context, s model.CatalogSnapshot) error {
	c.lru.Add(s.ProductID, s)
	return nil
}

func (c *LRUCache) Invalidate(_ context.Context, productIDs ...string) error {
	for _, id := range productIDs {
		c.lru.Remove(id)
	}
	return nil
}
