package repository_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCheckoutRateLimit(t *testing.T) {
	ctx := t.Context()
	owner := "user:7b1f2a9e-0000-4000-8000-000000000001"
	key := "checkout_attempts:" + owner
	now := time.UnixMilli(1_700_000_000_000)
	window := time.Minute

	cfg := &config.Config{RateConfig: config.RateConfig{MaxAttempts: 3, WindowSize: window}}

	expectPipeline := func(mock redismock.ClientMock) {
		windowStart := strconv.FormatInt(now.UnixMilli()-window.Milliseconds(), 10)
		mock.ExpectZRemRangeByScore(key, "0", windowStart).SetVal(0)
		mock.ExpectZAdd(key, redis.Z{Score: float64(now.UnixMilli()), Member: strconv.FormatInt(now.UnixNano(), 10)}).SetVal(1)
	}

	t.Run("Allowed - Under Limit", func(t *testing.T) {
		// Arrange
		client, mock := redismock.NewClientMock()
		repo := repository.NewRateLimitRepo(client, cfg, repository.WithClock(func() time.Time { return now }))

		expectPipeline(mock)
		mock.ExpectZCard(key).SetVal(2)
		mock.ExpectPExpire(key, window).SetVal(true)

		// Act
		allowed, remaining, retryAfter, err := repo.CheckCheckoutRateLimit(ctx, owner)

		// Assert
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1, remaining)
		assert.Zero(t, retryAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Allowed - Exactly At Limit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := repository.NewRateLimitRepo(client, cfg, repository.WithClock(func() time.Time { return now }))

		expectPipeline(mock)
		mock.ExpectZCard(key).SetVal(3)
		mock.ExpectPExpire(key, window).SetVal(true)

		allowed, remaining, _, err := repo.CheckCheckoutRateLimit(ctx, owner)

		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Zero(t, remaining)
	})

	t.Run("Denied - Over Limit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := repository.NewRateLimitRepo(client, cfg, repository.WithClock(func() time.Time { return now }))

		expectPipeline(mock)
		mock.ExpectZCard(key).SetVal(4)
		mock.ExpectPExpire(key, window).SetVal(true)
		oldest := float64(now.Add(-45 * time.Second).UnixMilli())
		mock.ExpectZRangeArgsWithScores(redis.ZRangeArgs{Key: key, Start: 0, Stop: 0}).
			SetVal([]redis.Z{{Score: oldest, Member: "x"}})

		allowed, remaining, retryAfter, err := repo.CheckCheckoutRateLimit(ctx, owner)

		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Zero(t, remaining)
		assert.Equal(t, 15, retryAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Denied - Retry Hint Lookup Fails", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := repository.NewRateLimitRepo(client, cfg, repository.WithClock(func() time.Time { return now }))

		expectPipeline(mock)
		mock.ExpectZCard(key).SetVal(4)
		mock.ExpectPExpire(key, window).SetVal(true)
		mock.ExpectZRangeArgsWithScores(redis.ZRangeArgs{Key: key, Start: 0, Stop: 0}).
			SetErr(errors.New("connection reset"))

		allowed, _, retryAfter, err := repo.CheckCheckoutRateLimit(ctx, owner)

		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 60, retryAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Denied - Window Already Empty", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := repository.NewRateLimitRepo(client, cfg, repository.WithClock(func() time.Time { return now }))

		expectPipeline(mock)
		mock.ExpectZCard(key).SetVal(4)
		mock.ExpectPExpire(key, window).SetVal(true)
		mock.ExpectZRangeArgsWithScores(redis.ZRangeArgs{Key: key, Start: 0, Stop: 0}).SetVal([]redis.Z{})

		allowed, _, retryAfter, err := repo.CheckCheckoutRateLimit(ctx, owner)

		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 60, retryAfter)
	})

	t.Run("Failure - Pipeline Error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := repository.NewRateLimitRepo(client, cfg, repository.WithClock(func() time.Time { return now }))

		redisErr := errors.New("redis unavailable")
		windowStart := strconv.FormatInt(now.UnixMilli()-window.Milliseconds(), 10)
		mock.ExpectZRemRangeByScore(key, "0", windowStart).SetErr(redisErr)

		allowed, _, _, err := repo.CheckCheckoutRateLimit(ctx, owner)

		require.Error(t, err)
		assert.False(t, allowed)
		assert.ErrorContains(t, err, "redis pipeline error")
	})
}
