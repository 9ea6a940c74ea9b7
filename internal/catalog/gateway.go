// Package catalog is the read side of the product catalog: price, stock
// and availability lookups, with breaker and cache decorators.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

type Gateway interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, id int64) (*models.Product, error)

func (f GatewayFunc) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return f(ctx, id)
}

// FetchAll looks up each distinct id once with at most limit calls in
// flight. Ids the catalog does not know are returned in missing, sorted;
// any other failure aborts the whole fetch.
func FetchAll(ctx context.Context, gw Gateway, ids []int64, limit int) (map[int64]*models.Product, []int64, error) {
	distinct := slices.Clone(ids)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	var (
		mu      sync.Mutex
		found   = make(map[int64]*models.Product, len(distinct))
		missing []int64
	)

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, id := range distinct {
		g.Go(func() error {
			product, err := gw.GetProduct(gctx, id)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, ErrProductNotFound):
				missing = append(missing, id)
				return nil
			case err != nil:
				return fmt.Errorf("fetch product %d: %w", id, err)
			}

			found[id] = product

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	slices.Sort(missing)

	return found, missing, nil
}
