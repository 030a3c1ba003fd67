// Package outbox publishes transaction events enqueued alongside ledger
// commits.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nvoronin/ledger-service/internal/models"
)

// TransactionEvent is the payload published for every terminal transaction.
type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	FromAccount   *string   `json:"from_account"`
	ToAccount     string    `json:"to_account"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// TransactionMessage builds the outbox row for a terminal transaction. The
// message key is the transaction id so partitioning keeps per-transaction
// ordering.
func TransactionMessage(topic string, txn *models.Transaction) (*models.OutboxMessage, error) {
	payload, err := json.Marshal(TransactionEvent{
		TransactionID: txn.ID,
		FromAccount:   txn.FromAccount,
		ToAccount:     txn.ToAccount,
		Amount:        txn.Amount,
		Status:        txn.Status,
		FailureReason: txn.FailureReason,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction event: %w", err)
	}
	return &models.OutboxMessage{
		ID:      uuid.NewString(),
		Topic:   topic,
		Key:     txn.ID,
		Payload: payload,
		Status:  models.OutboxPending,
	}, nil
}
