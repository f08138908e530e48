// Package memory is a concurrency-safe in-memory ledger store used by unit
// tests and development mode. Transactions stage their writes and apply them
// at commit, after re-validating every version compare-and-swap.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/money"
)

// ErrDuplicateNumber is returned when provisioning an account number twice.
var ErrDuplicateNumber = ledger.ErrDuplicateNumber

// Store keeps accounts and the audit trail in process memory.
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]ledger.Account
	numbers    map[string]string
	records    []ledger.TransactionRecord
	failCommit error
}

var _ ledger.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]ledger.Account),
		numbers:  make(map[string]string),
	}
}

// CreateAccount provisions an account with an opening balance.
func (s *Store) CreateAccount(_ context.Context, number string, opening money.Money) (ledger.Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return ledger.Account{}, errors.New("account number is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.numbers[number]; exists {
		return ledger.Account{}, ErrDuplicateNumber
	}

	acc := ledger.Account{
		ID:        uuid.NewString(),
		Number:    number,
		Balance:   opening,
		Version:   ledger.InitialVersion,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[acc.ID] = acc
	s.numbers[number] = acc.ID
	return acc, nil
}

// FailNextCommit makes the next committing transaction with pending writes
// fail with err and apply nothing. Used to exercise rollback paths.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

// RecordCount returns the total number of records in the audit trail.
func (s *Store) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// WithinTx runs fn against a staging transaction and commits it atomically.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{store: s, index: make(map[string]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

// ListTransactionRecords returns an account's records, newest first.
func (s *Store) ListTransactionRecords(_ context.Context, accountID string) ([]ledger.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.TransactionRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].AccountID == accountID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *Store) commit(ctx context.Context, tx *memTx) error {
	if len(tx.writes) == 0 && len(tx.records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failCommit != nil {
		err := s.failCommit
		s.failCommit = nil
		return err
	}

	for _, w := range tx.writes {
		current, ok := s.accounts[w.account.ID]
		if !ok {
			return ledger.ErrNotFound
		}
		if current.Version != w.expected {
			return ledger.ErrVersionMismatch
		}
	}

	for _, w := range tx.writes {
		s.accounts[w.account.ID] = w.account
	}
	s.records = append(s.records, tx.records...)
	return nil
}

func (s *Store) get(id string) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	return acc, ok
}

type stagedWrite struct {
	account  ledger.Account
	expected ledger.Version
}

type memTx struct {
	store   *Store
	writes  []stagedWrite
	index   map[string]int
	records []ledger.TransactionRecord
}

func (t *memTx) GetAccount(_ context.Context, id string) (ledger.Account, error) {
	if i, ok := t.index[id]; ok {
		return t.writes[i].account, nil
	}
	acc, ok := t.store.get(id)
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return acc, nil
}

func (t *memTx) GetAccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	t.store.mu.RLock()
	id, ok := t.store.numbers[strings.TrimSpace(number)]
	t.store.mu.RUnlock()
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return t.GetAccount(ctx, id)
}

func (t *memTx) SaveAccount(_ context.Context, acc ledger.Account, expected ledger.Version) error {
	if i, ok := t.index[acc.ID]; ok {
		if t.writes[i].account.Version != expected {
			return ledger.ErrVersionMismatch
		}
		t.writes[i].account = acc
		return nil
	}

	current, ok := t.store.get(acc.ID)
	if !ok {
		return ledger.ErrNotFound
	}
	if current.Version != expected {
		return ledger.ErrVersionMismatch
	}
	t.index[acc.ID] = len(t.writes)
	t.writes = append(t.writes, stagedWrite{account: acc, expected: expected})
	return nil
}

func (t *memTx) AppendTransactionRecord(_ context.Context, rec ledger.TransactionRecord) error {
	if strings.TrimSpace(rec.Description) == "" {
		return ledger.ErrEmptyDescription
	}
	t.records = append(t.records, rec)
	return nil
}
