package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	"github.com/redis/go-redis/v9"
)

type RateLimitRepository interface {
	// CheckCheckoutRateLimit records one checkout attempt for ownerKey and
	// reports whether it is allowed, how many attempts remain and, when
	// denied, how many seconds to wait.
	CheckCheckoutRateLimit(ctx context.Context, ownerKey string) (bool, int, int, error)
}

type redisRepository struct {
	client *redis.Client
	cfg    *config.Config
	now    func() time.Time
}

type RateLimitOption func(*redisRepository)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RateLimitOption {
	return func(r *redisRepository) { r.now = now }
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	redisURL := cfg.RedisConnect.GetDSN()
	slog.Info("Connecting to Redis", slog.String("url", fmt.Sprintf("redis://%s:<password>@%s:%s", cfg.RedisConnect.Username, cfg.RedisConnect.Host, cfg.RedisConnect.Port)))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", slog.Any("error", err))
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DB = cfg.RedisConnect.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Successfully connected to Redis")

	return client, nil
}

func NewRateLimitRepo(client *redis.Client, cfg *config.Config, opts ...RateLimitOption) RateLimitRepository {
	r := &redisRepository{client: client, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CheckCheckoutRateLimit keeps a sorted set per owner scored by attempt time
// in milliseconds and counts the members inside the sliding window.
func (r *redisRepository) CheckCheckoutRateLimit(ctx context.Context, ownerKey string) (bool, int, int, error) {
	logger := middleware.LoggerFromContext(ctx)

	key := "checkout_attempts:" + ownerKey
	window := r.cfg.RateConfig.WindowSize
	limit := r.cfg.RateConfig.MaxAttempts

	now := r.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - window.Milliseconds()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: strconv.FormatInt(now.UnixNano(), 10)})
	count := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("Redis pipeline execution failed for rate limit", slog.String("key", key), slog.Any("error", err))
		return false, 0, 0, fmt.Errorf("redis pipeline error for rate limit check: %w", err)
	}

	attempts := count.Val()
	if attempts <= limit {
		logger.Debug("Rate limit check passed", slog.String("owner", ownerKey), slog.Int64("attempts", attempts))
		return true, int(limit - attempts), 0, nil
	}

	logger.Warn("Checkout rate limit exceeded", slog.String("owner", ownerKey), slog.Int64("attempts", attempts))

	// the attempt is over the limit either way; only the hint degrades
	oldest, err := r.client.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{Key: key, Start: 0, Stop: 0}).Result()
	if err != nil || len(oldest) == 0 {
		logger.Error("Failed to get oldest attempt time for rate limit", slog.String("key", key), slog.Any("error", err))
		return false, 0, max(int(window.Seconds()), 1), nil
	}

	waitMs := int64(oldest[0].Score) + window.Milliseconds() - nowMs
	retryAfter := max(int((waitMs+999)/1000), 1)

	return false, 0, retryAfter, nil
}
