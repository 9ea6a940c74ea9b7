package cache

import (
	"context"
	"strconv"
	"time"
)

// Cache stores JSON encoded values under string keys.
type Cache interface {
	// Get decodes the cached value into dest. A miss is (false, nil).
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value; ttl <= 0 selects the configured default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const ProductKeyPrefix = "catalog:product"

func Key(prefix string, id string) string {
	return prefix + ":" + id
}

func ProductKey(productID int64) string {
	return Key(ProductKeyPrefix, strconv.FormatInt(productID, 10))
}
