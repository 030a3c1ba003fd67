package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nvoronin/ledger-service/internal/models"
)

// CreateTransaction appends a transaction record inside the money-movement
// transaction.
func (t *ledgerTx) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return createTransaction(ctx, t.tx, txn)
}

func createTransaction(ctx context.Context, q dbtx, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, from_account, to_account, amount, idempotency_key, status, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := q.QueryRowContext(ctx, query,
		txn.ID, txn.FromAccount, txn.ToAccount, txn.Amount, txn.IdempotencyKey, txn.Status, txn.FailureReason).
		Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// TransactionByID retrieves a transaction by id
func (r *Repository) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `
		SELECT id, from_account, to_account, amount, idempotency_key, status, failure_reason, created_at
		FROM transactions
		WHERE id = $1`
	txn := &models.Transaction{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&txn.ID, &txn.FromAccount, &txn.ToAccount, &txn.Amount,
		&txn.IdempotencyKey, &txn.Status, &txn.FailureReason, &txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return txn, nil
}
