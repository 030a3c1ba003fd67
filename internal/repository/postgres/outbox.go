package postgres

import (
	"context"
	"fmt"

	"github.com/nvoronin/ledger-service/internal/models"
)

// EnqueueOutbox stores an event row in the same transaction as the balance
// mutation it describes.
func (t *ledgerTx) EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox (id, topic, key, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)`
	_, err := t.tx.ExecContext(ctx, query, msg.ID, msg.Topic, msg.Key, msg.Payload, models.OutboxPending)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox message: %w", err)
	}
	return nil
}

// PendingOutbox returns up to limit unsent outbox messages, oldest first.
func (r *Repository) PendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	query := `
		SELECT id, topic, key, payload, status, created_at
		FROM outbox
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, models.OutboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []models.OutboxMessage
	for rows.Next() {
		var msg models.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Key, &msg.Payload, &msg.Status, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkOutboxSent flags a message as published.
func (r *Repository) MarkOutboxSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = $2 WHERE id = $1`, id, models.OutboxSent)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message sent: %w", err)
	}
	return nil
}
