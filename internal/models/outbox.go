package models

import "time"

// Outbox message statuses.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
)

// OutboxMessage is a transaction event enqueued in the same database
// transaction as the balance mutation and published to Kafka by the outbox
// processor.
type OutboxMessage struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
