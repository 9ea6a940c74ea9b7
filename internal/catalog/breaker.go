package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/sony/gobreaker/v2"
)

type breakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*models.Product]
}

// NewBreakerGateway trips after maxFailures consecutive catalog failures
// and fails fast with ErrCatalogUnavailable until openTimeout has passed.
// A product that does not exist is an answer, not a failure.
func NewBreakerGateway(next Gateway, name string, maxFailures uint32, openTimeout time.Duration) Gateway {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Catalog circuit breaker changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &breakerGateway{next: next, cb: gobreaker.NewCircuitBreaker[*models.Product](settings)}
}

func (g *breakerGateway) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := g.cb.Execute(func() (*models.Product, error) {
		return g.next.GetProduct(ctx, id)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	return product, err
}
