package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nvoronin/ledger-service/internal/models"
)

// ReserveIdempotencyKey atomically claims the key. The insert races are
// settled by the primary key: exactly one caller observes reserved=true.
func (r *Repository) ReserveIdempotencyKey(ctx context.Context, key, fingerprint string) (*models.IdempotencyRecord, bool, error) {
	query := `
		INSERT INTO idempotency_keys (key, fingerprint, status, reserved_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, key, fingerprint, models.IdempotencyPending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return &models.IdempotencyRecord{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      models.IdempotencyPending,
			ReservedAt:  time.Now(),
		}, true, nil
	}

	rec, err := r.IdempotencyRecord(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// IdempotencyRecord fetches the record for key, or nil if the key is free.
func (r *Repository) IdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	query := `
		SELECT key, fingerprint, status, transaction_id, reserved_at
		FROM idempotency_keys
		WHERE key = $1`
	rec := &models.IdempotencyRecord{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&rec.Key, &rec.Fingerprint, &rec.Status, &rec.TransactionID, &rec.ReservedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find idempotency record: %w", err)
	}
	return rec, nil
}

// FinalizeIdempotencyKey marks the reservation terminal inside the commit
// transaction, so the outcome and the balance mutation become visible
// together.
func (t *ledgerTx) FinalizeIdempotencyKey(ctx context.Context, key, transactionID, status string) error {
	return finalizeIdempotencyKey(ctx, t.tx, key, transactionID, status)
}

func finalizeIdempotencyKey(ctx context.Context, q dbtx, key, transactionID, status string) error {
	query := `
		UPDATE idempotency_keys
		SET status = $2, transaction_id = $3
		WHERE key = $1 AND status = $4`
	res, err := q.ExecContext(ctx, query, key, status, transactionID, models.IdempotencyPending)
	if err != nil {
		return fmt.Errorf("failed to finalize idempotency key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("idempotency key %s is not pending", key)
	}
	return nil
}

// ReleaseIdempotencyKey drops a pending reservation so a retry can
// re-execute. Terminal records are never deleted.
func (r *Repository) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND status = $2`,
		key, models.IdempotencyPending)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// ReleaseStaleReservations drops pending reservations older than olderThan.
// These are left over from processes that died mid-execution; without the
// sweep a legitimate retry of that key would be stuck forever.
func (r *Repository) ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE status = $1 AND reserved_at < $2`,
		models.IdempotencyPending, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to release stale reservations: %w", err)
	}
	return res.RowsAffected()
}
