package service

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/lock"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/metrics"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
)

// OwnerLockKey names the lock guarding an owner's cart.
func OwnerLockKey(owner models.OwnerKey) string {
	return "cart:" + owner.String()
}

// lockOwners holds every owner's cart lock, waiting at most wait.
func lockOwners(ctx context.Context, locker lock.Locker, wait time.Duration, owners ...models.OwnerKey) (lock.Release, error) {
	keys := make([]string, 0, len(owners))
	for _, owner := range owners {
		keys = append(keys, OwnerLockKey(owner))
	}

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	start := time.Now()
	release, err := lock.LockAll(lockCtx, locker, keys...)
	metrics.LockWait.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return nil, appErrors.TimeoutError("Cart is busy, please retry").WithError(err)
		}

		return nil, appErrors.InternalError("Failed to lock cart").WithError(err)
	}

	return release, nil
}
