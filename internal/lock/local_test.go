package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	// Arrange
	locker := lock.NewLocalLocker()
	ctx := t.Context()

	var inside, maxInside atomic.Int32

	var wg sync.WaitGroup

	// Act
	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			release, err := locker.Lock(ctx, "cart:user:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}

			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}

	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestLocalLocker_DistinctKeysDoNotBlock(t *testing.T) {
	locker := lock.NewLocalLocker()
	ctx := t.Context()

	releaseA, err := locker.Lock(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	releaseB, err := locker.Lock(waitCtx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalLocker_TimeoutWhileHeld(t *testing.T) {
	// Arrange
	locker := lock.NewLocalLocker()
	ctx := t.Context()

	release, err := locker.Lock(ctx, "cart:session:1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	// Act
	_, err = locker.Lock(waitCtx, "cart:session:1")

	// Assert
	require.ErrorIs(t, err, lock.ErrLockTimeout)

	release()
	release()

	again, err := locker.Lock(ctx, "cart:session:1")
	require.NoError(t, err, "lock should be free after release")
	again()
}

func TestLockAll(t *testing.T) {
	locker := lock.NewLocalLocker()
	ctx := t.Context()

	t.Run("Success - acquires every key once", func(t *testing.T) {
		release, err := lock.LockAll(ctx, locker, "b", "a", "b")
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err = locker.Lock(waitCtx, "a")
		assert.ErrorIs(t, err, lock.ErrLockTimeout)

		release()

		r, err := locker.Lock(ctx, "a")
		require.NoError(t, err)
		r()
	})

	t.Run("Failure - releases what it took", func(t *testing.T) {
		held, err := locker.Lock(ctx, "y")
		require.NoError(t, err)
		defer held()

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err = lock.LockAll(waitCtx, locker, "y", "x")
		require.ErrorIs(t, err, lock.ErrLockTimeout)

		r, err := locker.Lock(ctx, "x")
		require.NoError(t, err, "x must not stay held after a failed LockAll")
		r()
	})
}
