package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	"github.com/hellofresh/health-go/v5"
	"github.com/hellofresh/health-go/v5/checks/postgres"
	healthRedis "github.com/hellofresh/health-go/v5/checks/redis"
	"github.com/segmentio/kafka-go"
)

// KafkaDialer opens a broker connection; kafka.Dialer satisfies it.
type KafkaDialer interface {
	DialContext(ctx context.Context, network, address string) (*kafka.Conn, error)
}

func NewHealthHandler(cfg *config.Config, dialer KafkaDialer) (*health.Health, error) {
	checks := []health.Config{
		{
			Name:      "database",
			Timeout:   3 * time.Second,
			SkipOnErr: false,
			Check: postgres.New(postgres.Config{
				DSN: cfg.Database.GetDSN(),
			}),
		},
		{
			Name:      "redis",
			Timeout:   2 * time.Second,
			SkipOnErr: false,
			Check: healthRedis.New(healthRedis.Config{
				DSN: cfg.RedisConnect.GetDSN(),
			}),
		},
	}

	if len(cfg.Kafka.Brokers) > 0 {
		checks = append(checks, health.Config{
			Name:    "kafka",
			Timeout: 3 * time.Second,
			// orders keep committing while the broker is down; the outbox catches up
			SkipOnErr: true,
			Check:     KafkaCheck(dialer, cfg.Kafka.Brokers),
		})
	}

	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    "storefront-checkout",
			Version: "1.0.0",
		}),
		health.WithSystemInfo(),
		health.WithChecks(checks...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}

// KafkaCheck succeeds when any broker accepts a connection.
func KafkaCheck(dialer KafkaDialer, brokers []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var errs []error

		for _, broker := range brokers {
			conn, err := dialer.DialContext(ctx, "tcp", broker)
			if err == nil {
				return conn.Close()
			}

			errs = append(errs, fmt.Errorf("broker %s: %w", broker, err))
		}

		return fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
	}
}
