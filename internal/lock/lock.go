// Package lock serializes work per owner key. The Redis implementation
// coordinates replicas; the local one serves single-instance deployments
// and tests.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var ErrLockTimeout = errors.New("lock wait exceeded")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

type Locker interface {
	// Lock blocks until key is held or ctx is done. A done ctx yields
	// ErrLockTimeout.
	Lock(ctx context.Context, key string) (Release, error)
}

// LockAll acquires every key in sorted order so two callers locking the same
// set can never deadlock. On failure nothing stays held.
func LockAll(ctx context.Context, locker Locker, keys ...string) (Release, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	releases := make([]Release, 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range sorted {
		release, err := locker.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}

		releases = append(releases, release)
	}

	return releaseAll, nil
}
