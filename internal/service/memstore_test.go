package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/repository"
)

// memStore is an in-memory stand-in for the PostgreSQL repository. WithinTx
// serializes units of work on one mutex and journals every mutation, so an
// error rolls the whole unit back just like the database does.
type memStore struct {
	mu           sync.Mutex
	users        map[string]*models.User
	accounts     map[string]*models.Account
	transactions map[string]*models.Transaction
	idempotency  map[string]*models.IdempotencyRecord
	outbox       []*models.OutboxMessage

	// balanceHook, when set, runs before every balance change and can inject
	// failures.
	balanceHook func(accountID string, delta int64) error
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*models.User),
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]*models.Transaction),
		idempotency:  make(map[string]*models.IdempotencyRecord),
	}
}

func (m *memStore) addAccount(ownerID string, balance int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	m.accounts[id] = &models.Account{ID: id, OwnerID: ownerID, Balance: balance, CreatedAt: now, UpdatedAt: now}
	return id
}

func (m *memStore) balance(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

func (m *memStore) totalBalance() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, acc := range m.accounts {
		sum += acc.Balance
	}
	return sum
}

func (m *memStore) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

func (m *memStore) outboxCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outbox)
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", models.ErrEmailTaken, user.Email)
		}
	}
	c := *user
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.users[c.ID] = &c
	user.CreatedAt = c.CreatedAt
	return nil
}

func (m *memStore) CreateUserWithAccount(ctx context.Context, user *models.User, account *models.Account) error {
	if err := m.CreateUser(ctx, user); err != nil {
		return err
	}
	return m.CreateAccount(ctx, account)
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, email)
}

func (m *memStore) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, id)
	}
	c := *u
	return &c, nil
}

func (m *memStore) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *account
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
		c.UpdatedAt = now
	}
	m.accounts[c.ID] = &c
	return nil
}

func (m *memStore) AccountByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
	}
	c := *acc
	return &c, nil
}

func (m *memStore) TransactionByID(_ context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	c := *txn
	return &c, nil
}

func (m *memStore) ReserveIdempotencyKey(_ context.Context, key, fingerprint string) (*models.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.idempotency[key]; ok {
		c := *rec
		return &c, false, nil
	}
	rec := &models.IdempotencyRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      models.IdempotencyPending,
		ReservedAt:  time.Now().UTC(),
	}
	m.idempotency[key] = rec
	c := *rec
	return &c, true, nil
}

func (m *memStore) IdempotencyRecord(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idempotency[key]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (m *memStore) ReleaseIdempotencyKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.idempotency[key]; ok && rec.Status == models.IdempotencyPending {
		delete(m.idempotency, key)
	}
	return nil
}

func (m *memStore) ReleaseStaleReservations(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var released int64
	for key, rec := range m.idempotency {
		if rec.Status == models.IdempotencyPending && rec.ReservedAt.Before(cutoff) {
			delete(m.idempotency, key)
			released++
		}
	}
	return released, nil
}

func (m *memStore) PendingOutbox(_ context.Context, limit int) ([]models.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OutboxMessage
	for _, msg := range m.outbox {
		if msg.Status != models.OutboxPending {
			continue
		}
		out = append(out, *msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) MarkOutboxSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.outbox {
		if msg.ID == id {
			msg.Status = models.OutboxSent
			return nil
		}
	}
	return fmt.Errorf("outbox message %s not found", id)
}

func (m *memStore) WithinTx(_ context.Context, fn func(tx repository.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

type memTx struct {
	store *memStore
	undo  []func()
}

func (t *memTx) LockAccounts(_ context.Context, ids ...string) (map[string]*models.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	out := make(map[string]*models.Account, len(sorted))
	for _, id := range sorted {
		acc, ok := t.store.accounts[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
		}
		c := *acc
		out[id] = &c
	}
	return out, nil
}

func (t *memTx) ApplyBalanceChange(_ context.Context, accountID string, delta int64) error {
	if hook := t.store.balanceHook; hook != nil {
		if err := hook(accountID, delta); err != nil {
			return err
		}
	}
	acc, ok := t.store.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	prevBalance, prevVersion := acc.Balance, acc.Version
	acc.Balance += delta
	acc.Version++
	acc.UpdatedAt = time.Now().UTC()
	t.undo = append(t.undo, func() { acc.Balance, acc.Version = prevBalance, prevVersion })
	return nil
}

func (t *memTx) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	c := *txn
	t.store.transactions[c.ID] = &c
	t.undo = append(t.undo, func() { delete(t.store.transactions, c.ID) })
	return nil
}

func (t *memTx) FinalizeIdempotencyKey(_ context.Context, key, transactionID, status string) error {
	rec, ok := t.store.idempotency[key]
	if !ok || rec.Status != models.IdempotencyPending {
		return fmt.Errorf("idempotency key %s is not pending", key)
	}
	prev := *rec
	txnID := transactionID
	rec.Status = status
	rec.TransactionID = &txnID
	t.undo = append(t.undo, func() { *rec = prev })
	return nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, msg *models.OutboxMessage) error {
	c := *msg
	t.store.outbox = append(t.store.outbox, &c)
	t.undo = append(t.undo, func() { t.store.outbox = t.store.outbox[:len(t.store.outbox)-1] })
	return nil
}
