package models

import "time"

// Idempotency record statuses. A pending reservation either advances to a
// terminal status or is released (deleted) so retries can re-execute.
const (
	IdempotencyPending   = "pending"
	IdempotencyCompleted = "completed"
	IdempotencyFailed    = "failed"
)

// MaxIdempotencyKeyLen bounds caller-supplied idempotency keys.
const MaxIdempotencyKeyLen = 100

// IdempotencyRecord maps a caller-supplied key to the transaction it
// produced. Fingerprint detects a key reused with different parameters.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	Fingerprint   string    `json:"fingerprint"`
	Status        string    `json:"status"`
	TransactionID *string   `json:"transaction_id"`
	ReservedAt    time.Time `json:"reserved_at"`
}
