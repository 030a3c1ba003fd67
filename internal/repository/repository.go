package repository

import (
	"context"
	"time"

	"github.com/nvoronin/ledger-service/internal/models"
)

// Store provides database operations for the ledger. The transaction engine
// is written against this interface; internal/repository/postgres implements
// it on PostgreSQL.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	CreateUserWithAccount(ctx context.Context, user *models.User, account *models.Account) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)

	// Accounts
	CreateAccount(ctx context.Context, account *models.Account) error
	AccountByID(ctx context.Context, id string) (*models.Account, error)

	// Transactions (append-only audit trail)
	TransactionByID(ctx context.Context, id string) (*models.Transaction, error)

	// Idempotency ledger. ReserveIdempotencyKey atomically inserts a pending
	// reservation; reserved reports whether this call won the key. When it
	// did not, the returned record is the existing one (nil if the key was
	// released in between, in which case the caller should treat the
	// situation as transient).
	ReserveIdempotencyKey(ctx context.Context, key, fingerprint string) (rec *models.IdempotencyRecord, reserved bool, err error)
	IdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
	ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error)

	// Outbox read side, used by the publisher.
	PendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id string) error

	// WithinTx runs fn inside a single database transaction and commits only
	// if fn returns nil. Any error rolls back every mutation made through
	// the LedgerTx.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of mutations available inside one atomic unit. All of
// them become visible together at commit or not at all.
type LedgerTx interface {
	// LockAccounts acquires row locks on the given accounts in deterministic
	// (sorted) order and returns the current rows keyed by id. A missing
	// account yields models.ErrAccountNotFound.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)
	// ApplyBalanceChange adds delta to the account balance and bumps its
	// version counter.
	ApplyBalanceChange(ctx context.Context, accountID string, delta int64) error
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	FinalizeIdempotencyKey(ctx context.Context, key, transactionID, status string) error
	EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) error
}
