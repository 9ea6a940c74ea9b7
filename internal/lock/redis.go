package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// Deletes the key only while it still holds our token, so a lock that
// expired and was taken by someone else is left alone.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type redisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	newToken   func() string
}

type Option func(*redisLocker)

func WithBackoff(minBackoff, maxBackoff time.Duration) Option {
	return func(l *redisLocker) {
		l.minBackoff = minBackoff
		l.maxBackoff = maxBackoff
	}
}

func WithTokenFunc(fn func() string) Option {
	return func(l *redisLocker) {
		l.newToken = fn
	}
}

// NewRedisLocker returns a Locker backed by SET NX PX. ttl caps how long a
// crashed holder can block others.
func NewRedisLocker(client *redis.Client, ttl time.Duration, opts ...Option) Locker {
	l := &redisLocker{
		client:     client,
		ttl:        ttl,
		minBackoff: 10 * time.Millisecond,
		maxBackoff: 200 * time.Millisecond,
		newToken:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *redisLocker) Lock(ctx context.Context, key string) (Release, error) {
	redisKey := keyPrefix + key
	token := l.newToken()
	backoff := l.minBackoff

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}

			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if ok {
			return l.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-timer.C:
		}

		backoff = min(backoff*2, l.maxBackoff)
	}
}

func (l *redisLocker) releaser(redisKey, token string) Release {
	var once sync.Once

	return func() {
		once.Do(func() {
			// The caller's context is often already done here.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err(); err != nil {
				slog.Warn("Failed to release lock, it will expire on its own",
					slog.String("key", redisKey), slog.String("error", err.Error()))
			}
		})
	}
}
