package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/outbox"
	"github.com/nvoronin/ledger-service/internal/repository"
)

// Notifier receives committed transactions for best-effort owner
// notification. Delivery failures never affect the transaction outcome.
type Notifier interface {
	TransactionCommitted(txn *models.Transaction)
}

// Engine validates and executes transfers and system originations as single
// atomic operations against the account store and the idempotency ledger.
type Engine struct {
	store    repository.Store
	gate     Gate
	log      *logrus.Logger
	notifier Notifier
	topic    string

	maxAttempts int
	retryDelay  time.Duration
	replayPolls int
	replayDelay time.Duration
}

// NewEngine initializes a new transaction engine. notifier may be nil.
func NewEngine(store repository.Store, log *logrus.Logger, topic string, notifier Notifier) *Engine {
	return &Engine{
		store:       store,
		log:         log,
		notifier:    notifier,
		topic:       topic,
		maxAttempts: 3,
		retryDelay:  25 * time.Millisecond,
		replayPolls: 20,
		replayDelay: 50 * time.Millisecond,
	}
}

// TransferInput describes a user-initiated transfer. Amount is in minor
// units.
type TransferInput struct {
	FromAccount    string
	ToAccount      string
	Amount         int64
	IdempotencyKey string
}

// OriginateInput describes a system-initiated initial-funds credit.
type OriginateInput struct {
	ToAccount      string
	Amount         int64
	IdempotencyKey string
}

// Transfer moves funds between two existing accounts. The debit, the credit,
// the transaction record and the idempotency outcome commit together or not
// at all.
func (e *Engine) Transfer(ctx context.Context, in TransferInput, principal models.Principal) (*models.Transaction, error) {
	if err := validateAmountKey(in.Amount, in.IdempotencyKey); err != nil {
		return nil, err
	}
	if in.FromAccount == in.ToAccount {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", models.ErrInvalidOperation)
	}

	from, err := e.store.AccountByID(ctx, in.FromAccount)
	if err != nil {
		return nil, err
	}
	if err := e.gate.AuthorizeTransfer(principal, from); err != nil {
		return nil, err
	}

	fp := fingerprint("transfer", in.FromAccount, in.ToAccount, strconv.FormatInt(in.Amount, 10))
	rec, reserved, err := e.store.ReserveIdempotencyKey(ctx, in.IdempotencyKey, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if !reserved {
		return e.replay(ctx, in.IdempotencyKey, rec, fp)
	}

	fromID := in.FromAccount
	txn := &models.Transaction{
		ID:             uuid.NewString(),
		FromAccount:    &fromID,
		ToAccount:      in.ToAccount,
		Amount:         in.Amount,
		IdempotencyKey: in.IdempotencyKey,
		Status:         models.TransactionCompleted,
		CreatedAt:      time.Now().UTC(),
	}
	err = e.executeWithRetry(ctx, func(tx repository.LedgerTx) error {
		accounts, err := tx.LockAccounts(ctx, in.FromAccount, in.ToAccount)
		if err != nil {
			return err
		}
		if accounts[in.FromAccount].Balance < in.Amount {
			return fmt.Errorf("%w: account %s", models.ErrInsufficientFunds, in.FromAccount)
		}
		if err := tx.ApplyBalanceChange(ctx, in.FromAccount, -in.Amount); err != nil {
			return err
		}
		if err := tx.ApplyBalanceChange(ctx, in.ToAccount, in.Amount); err != nil {
			return err
		}
		return e.writeOutcome(ctx, tx, txn)
	})
	return e.settle(ctx, txn, err)
}

// Originate credits toAccount with newly created funds. Only the system
// principal may call it; there is no debit and no sufficiency check.
func (e *Engine) Originate(ctx context.Context, in OriginateInput, principal models.Principal) (*models.Transaction, error) {
	if err := e.gate.AuthorizeOriginate(principal); err != nil {
		return nil, err
	}
	if err := validateAmountKey(in.Amount, in.IdempotencyKey); err != nil {
		return nil, err
	}

	fp := fingerprint("originate", in.ToAccount, strconv.FormatInt(in.Amount, 10))
	rec, reserved, err := e.store.ReserveIdempotencyKey(ctx, in.IdempotencyKey, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if !reserved {
		return e.replay(ctx, in.IdempotencyKey, rec, fp)
	}

	txn := &models.Transaction{
		ID:             uuid.NewString(),
		ToAccount:      in.ToAccount,
		Amount:         in.Amount,
		IdempotencyKey: in.IdempotencyKey,
		Status:         models.TransactionCompleted,
		CreatedAt:      time.Now().UTC(),
	}
	err = e.executeWithRetry(ctx, func(tx repository.LedgerTx) error {
		if _, err := tx.LockAccounts(ctx, in.ToAccount); err != nil {
			return err
		}
		if err := tx.ApplyBalanceChange(ctx, in.ToAccount, in.Amount); err != nil {
			return err
		}
		return e.writeOutcome(ctx, tx, txn)
	})
	return e.settle(ctx, txn, err)
}

func validateAmountKey(amount int64, key string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", models.ErrInvalidOperation)
	}
	if key == "" || len(key) > models.MaxIdempotencyKeyLen {
		return fmt.Errorf("%w: idempotency key must be 1..%d characters", models.ErrInvalidOperation, models.MaxIdempotencyKeyLen)
	}
	return nil
}

// writeOutcome appends the transaction record, finalizes the idempotency
// key and enqueues the event, all inside the caller's transaction.
func (e *Engine) writeOutcome(ctx context.Context, tx repository.LedgerTx, txn *models.Transaction) error {
	if err := tx.CreateTransaction(ctx, txn); err != nil {
		return err
	}
	status := models.IdempotencyCompleted
	if txn.Status == models.TransactionFailed {
		status = models.IdempotencyFailed
	}
	if err := tx.FinalizeIdempotencyKey(ctx, txn.IdempotencyKey, txn.ID, status); err != nil {
		return err
	}
	msg, err := outbox.TransactionMessage(e.topic, txn)
	if err != nil {
		return err
	}
	return tx.EnqueueOutbox(ctx, msg)
}

// executeWithRetry retries fn on transient contention with a bounded
// budget.
func (e *Engine) executeWithRetry(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = e.store.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, models.ErrTransient) {
			return err
		}
		e.log.Warnf("Transaction attempt %d/%d hit contention: %v", attempt, e.maxAttempts, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrTransient, ctx.Err())
		case <-time.After(e.retryDelay * time.Duration(attempt)):
		}
	}
	return err
}

// settle turns the execution result into the caller-visible outcome.
// Deterministic domain failures are recorded so a retry with the same key
// replays the identical failure; everything else releases the reservation
// so a retry re-executes.
func (e *Engine) settle(ctx context.Context, txn *models.Transaction, err error) (*models.Transaction, error) {
	if err == nil {
		e.log.Infof("Transaction %s committed: %d to account %s", txn.ID, txn.Amount, txn.ToAccount)
		if e.notifier != nil {
			go e.notifier.TransactionCommitted(txn)
		}
		return txn, nil
	}

	if reason := models.FailureReason(err); reason != "" {
		txn.Status = models.TransactionFailed
		txn.FailureReason = reason
		if recErr := e.recordFailure(ctx, txn); recErr != nil {
			e.log.Errorf("Failed to record failed outcome for key %s: %v", txn.IdempotencyKey, recErr)
			e.release(txn.IdempotencyKey)
			return nil, err
		}
		e.log.Infof("Transaction %s failed: %s", txn.ID, reason)
		return txn, err
	}

	e.release(txn.IdempotencyKey)
	if errors.Is(err, models.ErrTransient) {
		return nil, err
	}
	return nil, fmt.Errorf("failed to execute transaction: %w", err)
}

func (e *Engine) recordFailure(ctx context.Context, txn *models.Transaction) error {
	return e.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return e.writeOutcome(ctx, tx, txn)
	})
}

// release drops a pending reservation. It runs on a background context:
// the caller may already be gone, but the key must not stay poisoned.
func (e *Engine) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.ReleaseIdempotencyKey(ctx, key); err != nil {
		e.log.Errorf("Failed to release idempotency key %s: %v", key, err)
	}
}

// replay resolves a request whose idempotency key is already known. A
// terminal record returns the original outcome verbatim; a pending one is
// polled a bounded number of times before reporting transient contention.
func (e *Engine) replay(ctx context.Context, key string, rec *models.IdempotencyRecord, fp string) (*models.Transaction, error) {
	for poll := 0; ; poll++ {
		if rec == nil {
			// Reservation released between insert and fetch; the client can
			// safely resend.
			return nil, fmt.Errorf("%w: idempotency key %s was released", models.ErrTransient, key)
		}
		if rec.Fingerprint != fp {
			return nil, models.ErrIdempotencyConflict
		}
		if rec.Status != models.IdempotencyPending {
			if rec.TransactionID == nil {
				return nil, fmt.Errorf("idempotency record %s is terminal without a transaction", key)
			}
			txn, err := e.store.TransactionByID(ctx, *rec.TransactionID)
			if err != nil {
				return nil, err
			}
			e.log.Infof("Idempotent replay of key %s returned transaction %s", key, txn.ID)
			if txn.Status == models.TransactionFailed {
				return txn, models.FailureError(txn.FailureReason)
			}
			return txn, nil
		}
		if poll >= e.replayPolls {
			return nil, fmt.Errorf("%w: idempotency key %s is still executing", models.ErrTransient, key)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", models.ErrTransient, ctx.Err())
		case <-time.After(e.replayDelay):
		}
		var err error
		rec, err = e.store.IdempotencyRecord(ctx, key)
		if err != nil {
			return nil, err
		}
	}
}
