// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/repository"
)

// Repository provides database operations backed by PostgreSQL
type Repository struct {
	db *sql.DB
}

// New initializes a new repository
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so query helpers can be
// shared between transactional and plain paths.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithinTx runs fn in a single database transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateErr(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// ledgerTx implements repository.LedgerTx on top of *sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

// translateErr maps driver-level contention errors onto the transient domain
// error so the engine can retry with a bounded budget.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure, deadlock_detected
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return fmt.Errorf("%w: %v", models.ErrTransient, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
