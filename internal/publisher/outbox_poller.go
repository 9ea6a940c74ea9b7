// Package publisher relays committed outbox events to Kafka.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/metrics"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	repo      repository.OutboxRepository
	writer    MessageWriter
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewKafkaWriter builds the writer for the order events topic.
func NewKafkaWriter(cfg config.Kafka) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo repository.OutboxRepository, writer MessageWriter, cfg config.Kafka, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		repo:      repo,
		writer:    writer,
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
		logger:    logger.With(slog.String("component", "outbox_poller")),
	}
}

// Run polls until ctx is done, then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("Failed to close kafka writer", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ticker.C:
			p.PublishPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PublishPending sends one batch of unpublished events and marks the ones
// the broker accepted. It returns how many were marked.
func (p *OutboxPoller) PublishPending(ctx context.Context) int {
	events, err := p.repo.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to fetch outbox events", slog.String("error", err.Error()))
		return 0
	}

	published := make([]int64, 0, len(events))

	for _, event := range events {
		if err := p.writer.WriteMessages(ctx, toMessage(event)); err != nil {
			metrics.OutboxPublishFailures.Inc()
			p.logger.Error("Failed to publish outbox event",
				slog.Int64("eventId", event.ID),
				slog.String("aggregateId", event.AggregateID),
				slog.String("error", err.Error()))

			// keep per-aggregate ordering: later events wait for the next tick
			break
		}

		published = append(published, event.ID)
	}

	if len(published) == 0 {
		return 0
	}

	if err := p.repo.MarkPublished(ctx, published); err != nil {
		p.logger.Error("Failed to mark outbox events published",
			slog.Int("count", len(published)),
			slog.String("error", err.Error()))

		return 0
	}

	metrics.OutboxPublished.Add(float64(len(published)))

	return len(published)
}

func toMessage(event models.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.CreatedAt,
	}
}
