package models

import "time"

const EventTypeOrderCreated = "order.created"

type OutboxEvent struct {
	ID          int64     `json:"id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}
