package publisher_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/publisher"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/repositories/mocks"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failOn   string
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, msg := range msgs {
		if string(msg.Key) == w.failOn {
			return errors.New("broker unavailable")
		}

		w.messages = append(w.messages, msg)
	}

	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true

	return nil
}

func testKafkaConfig() config.Kafka {
	return config.Kafka{Topic: "orders.created", PollInterval: 10 * time.Millisecond, BatchSize: 50}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outboxEvents() []models.OutboxEvent {
	return []models.OutboxEvent{
		{ID: 1, AggregateID: "order-a", EventType: models.EventTypeOrderCreated, Payload: []byte(`{"id":"order-a"}`)},
		{ID: 2, AggregateID: "order-b", EventType: models.EventTypeOrderCreated, Payload: []byte(`{"id":"order-b"}`)},
	}
}

func TestOutboxPoller_PublishPending(t *testing.T) {
	t.Run("Publishes and marks every event", func(t *testing.T) {
		// Arrange
		repo := mocks.NewOutboxRepository(t)
		writer := &recordingWriter{}
		poller := publisher.NewOutboxPoller(repo, writer, testKafkaConfig(), discardLogger())

		repo.On("FetchUnpublished", mock.Anything, 50).Return(outboxEvents(), nil).Once()
		repo.On("MarkPublished", mock.Anything, []int64{1, 2}).Return(nil).Once()

		// Act
		n := poller.PublishPending(t.Context())

		// Assert
		assert.Equal(t, 2, n)
		require.Len(t, writer.messages, 2)
		assert.Equal(t, "order-a", string(writer.messages[0].Key))
		assert.Equal(t, `{"id":"order-a"}`, string(writer.messages[0].Value))
		assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
		assert.Equal(t, models.EventTypeOrderCreated, string(writer.messages[0].Headers[0].Value))
	})

	t.Run("Stops at the first broker failure", func(t *testing.T) {
		// Arrange
		repo := mocks.NewOutboxRepository(t)
		writer := &recordingWriter{failOn: "order-b"}
		poller := publisher.NewOutboxPoller(repo, writer, testKafkaConfig(), discardLogger())

		repo.On("FetchUnpublished", mock.Anything, 50).Return(outboxEvents(), nil).Once()
		repo.On("MarkPublished", mock.Anything, []int64{1}).Return(nil).Once()

		// Act
		n := poller.PublishPending(t.Context())

		// Assert
		assert.Equal(t, 1, n)
	})

	t.Run("Nothing marked when nothing was sent", func(t *testing.T) {
		// Arrange
		repo := mocks.NewOutboxRepository(t)
		writer := &recordingWriter{failOn: "order-a"}
		poller := publisher.NewOutboxPoller(repo, writer, testKafkaConfig(), discardLogger())

		repo.On("FetchUnpublished", mock.Anything, 50).Return(outboxEvents(), nil).Once()

		// Act
		n := poller.PublishPending(t.Context())

		// Assert
		assert.Zero(t, n)
		repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
	})

	t.Run("Fetch failure", func(t *testing.T) {
		// Arrange
		repo := mocks.NewOutboxRepository(t)
		writer := &recordingWriter{}
		poller := publisher.NewOutboxPoller(repo, writer, testKafkaConfig(), discardLogger())

		repo.On("FetchUnpublished", mock.Anything, 50).Return(nil, errors.New("conn refused")).Once()

		// Act
		n := poller.PublishPending(t.Context())

		// Assert
		assert.Zero(t, n)
		assert.Empty(t, writer.messages)
	})

	t.Run("Mark failure reports zero", func(t *testing.T) {
		// Arrange
		repo := mocks.NewOutboxRepository(t)
		writer := &recordingWriter{}
		poller := publisher.NewOutboxPoller(repo, writer, testKafkaConfig(), discardLogger())

		repo.On("FetchUnpublished", mock.Anything, 50).Return(outboxEvents(), nil).Once()
		repo.On("MarkPublished", mock.Anything, []int64{1, 2}).Return(errors.New("deadlock")).Once()

		// Act
		n := poller.PublishPending(t.Context())

		// Assert
		assert.Zero(t, n)
	})
}

func TestOutboxPoller_RunClosesWriter(t *testing.T) {
	// Arrange
	repo := mocks.NewOutboxRepository(t)
	writer := &recordingWriter{}
	poller := publisher.NewOutboxPoller(repo, writer, testKafkaConfig(), discardLogger())

	repo.On("FetchUnpublished", mock.Anything, 50).Return([]models.OutboxEvent{}, nil).Maybe()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	// Act
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	// Assert
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.True(t, writer.closed)
}
