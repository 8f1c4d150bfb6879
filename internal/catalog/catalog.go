// Package catalog resolves scanned identifiers to catalog snapshots.
package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/ahinestrog/frontcounter/internal/model"
)

var tracer = otel.Tracer("github.com/ahinestrog/frontcounter/internal/catalog")

// Resolver looks a product up by identifier. A missing product yields an
// error wrapping model.ErrNotFound.
type Resolver interface {
	Lookup(ctx context.Context, productID string) (model.CatalogSnapshot, error)
}

type ResolverFunc func(ctx context.Context, productID string) (model.CatalogSnapshot, error)

func (f ResolverFunc) Lookup(ctx context.Context, productID string) (model.CatalogSnapshot, error) {
	return f(ctx, productID)
}

// Cache stores snapshots for a short time.
type Cache interface {
	Get(ctx context.Context, productID string) (model.CatalogSnapshot, bool, error)
	Set(ctx context.Context, s model.CatalogSnapshot) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// CachedResolver serves lookups from a Cache and collapses concurrent misses
// for the same product into one upstream call. Not-found answers are never cached.
type CachedResolver struct {
	next  Resolver
	cache Cache
	group singleflight.Group
	log   zerolog.Logger
}

func NewCachedResolver(next Resolver, cache Cache, log zerolog.Logger) *CachedResolver {
	return &CachedResolver{next: next, cache: cache, log: log}
}

func (r *CachedResolver) Lookup(ctx context.Context, productID string) (model.CatalogSnapshot, error) {
	ctx, span := tracer.Start(ctx, "catalog.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	if s, ok, err := r.cache.Get(ctx, productID); err != nil {
		r.log.Warn().Err(err).Str("product_id", productID).Msg("catalog cache read failed")
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return s, nil
	}

	v, err, _ := r.group.Do(productID, func() (any, error) {
		s, err := r.next.Lookup(ctx, productID)
		if err != nil {
			return model.CatalogSnapshot{}, err
		}
		if err := r.cache.Set(ctx, s); err != nil {
			r.log.Warn().Err(err).Str("product_id", productID).Msg("catalog cache write failed")
		}
		return s, nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		return model.CatalogSnapshot{}, err
	}
	return v.(model.CatalogSnapshot), nil
}

// Invalidate drops cached snapshots so the next scan captures fresh stock.
func (r *CachedResolver) Invalidate(ctx context.Context, productIDs ...string) {
	if err := r.cache.Invalidate(ctx, productIDs...); err != nil {
		r.log.Warn().Err(err).Strs("product_ids", productIDs).Msg("catalog cache invalidation failed")
	}
}
