package models

import "time"

// Transaction statuses. Both are terminal: a transaction row is written once
// at commit time and never updated.
const (
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction represents a committed money movement. FromAccount is nil for
// system-originated initial funds. Amount is in integer minor units.
type Transaction struct {
	ID             string    `json:"id"`
	FromAccount    *string   `json:"from_account"`
	ToAccount      string    `json:"to_account"`
	Amount         int64     `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         string    `json:"status"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
