package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/cache"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"golang.org/x/sync/singleflight"
)

// sharedFetchTimeout bounds a collapsed lookup once it no longer belongs to
// any single caller.
const sharedFetchTimeout = 5 * time.Second

type cachedGateway struct {
	next  Gateway
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedGateway serves lookups from cache and collapses concurrent
// misses for the same product into one catalog call. Cached prices may be
// stale by up to ttl, so it is for display only.
func NewCachedGateway(next Gateway, c cache.Cache, ttl time.Duration) Gateway {
	return &cachedGateway{next: next, cache: c, ttl: ttl}
}

func (g *cachedGateway) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	key := cache.ProductKey(id)

	var cached models.Product

	found, err := g.cache.Get(ctx, key, &cached)
	if err != nil {
		slog.Warn("Catalog cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if found {
		return &cached, nil
	}

	// the shared call outlives whichever caller started it; each caller
	// still stops waiting when its own ctx is done
	ch := g.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		product, err := g.next.GetProduct(fetchCtx, id)
		if err != nil {
			return nil, err
		}

		if err := g.cache.Set(fetchCtx, key, product, g.ttl); err != nil {
			slog.Warn("Catalog cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}

		return product, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		product := *res.Val.(*models.Product)

		return &product, nil
	}
}
