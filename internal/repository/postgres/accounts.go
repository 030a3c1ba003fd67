package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/nvoronin/ledger-service/internal/models"
)

// CreateAccount creates a new account in the database
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return createAccount(ctx, r.db, account)
}

func createAccount(ctx context.Context, q dbtx, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, balance, version, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := q.QueryRowContext(ctx, query, account.ID, account.OwnerID, account.Balance).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// AccountByID retrieves an account by id
func (r *Repository) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, COALESCE(owner_id::text, ''), balance, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// LockAccounts locks the given account rows for update. Ids are sorted first
// so two transfers touching the same pair in opposite order cannot deadlock.
func (t *ledgerTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	accounts := make(map[string]*models.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := accounts[id]; ok {
			continue
		}
		query := `
			SELECT id, COALESCE(owner_id::text, ''), balance, version, created_at, updated_at
			FROM accounts
			WHERE id = $1
			FOR UPDATE`
		account, err := scanAccount(t.tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}

// ApplyBalanceChange adds delta to the balance and bumps the version counter.
// The caller holds the row lock and has verified sufficiency; the CHECK
// constraint on balance is the backstop.
func (t *ledgerTx) ApplyBalanceChange(ctx context.Context, accountID string, delta int64) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	res, err := t.tx.ExecContext(ctx, query, delta, accountID)
	if err != nil {
		return translateErr(fmt.Errorf("failed to update balance for account %s: %w", accountID, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.OwnerID, &account.Balance, &account.Version,
		&account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, translateErr(fmt.Errorf("failed to find account: %w", err))
	}
	return account, nil
}
