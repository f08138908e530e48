// Package postgres persists ledger accounts and the audit trail in PostgreSQL.
// Account updates are compare-and-swap statements on the version column, so a
// stale writer affects zero rows instead of overwriting.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/money"
)

const uniqueViolation = "23505"

// ErrDuplicateNumber is returned when provisioning an account number twice.
var ErrDuplicateNumber = ledger.ErrDuplicateNumber

// Store implements ledger.Store on a pgx pool.
type Store struct {
	db *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// New constructs a Postgres-backed store.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateAccount provisions an account with an opening balance.
func (s *Store) CreateAccount(ctx context.Context, number string, opening money.Money) (ledger.Account, error) {
	acc := ledger.Account{
		ID:      uuid.NewString(),
		Number:  strings.TrimSpace(number),
		Balance: opening,
		Version: ledger.InitialVersion,
	}
	if acc.Number == "" {
		return ledger.Account{}, errors.New("account number is required")
	}

	var createdAt time.Time
	err := s.db.QueryRow(ctx, `INSERT INTO accounts (id, account_number, balance_minor, version)
        VALUES ($1, $2, $3, $4) RETURNING created_at`,
		uuid.MustParse(acc.ID), acc.Number, opening.MinorUnits(), int64(acc.Version)).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.Account{}, ErrDuplicateNumber
		}
		return ledger.Account{}, fmt.Errorf("insert account: %w", err)
	}
	acc.CreatedAt = createdAt.UTC()
	return acc, nil
}

// WithinTx runs fn in a read-committed transaction. The deferred rollback is a
// no-op once the transaction has committed.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListTransactionRecords returns an account's records, newest first.
func (s *Store) ListTransactionRecords(ctx context.Context, accountID string) ([]ledger.TransactionRecord, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return []ledger.TransactionRecord{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT id, account_id, kind, outcome, amount_minor, description, created_at
        FROM account_transactions
        WHERE account_id = $1
        ORDER BY created_at DESC, seq DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	records := make([]ledger.TransactionRecord, 0)
	for rows.Next() {
		var (
			recID, accID uuid.UUID
			kind         string
			outcome      string
			amountMinor  int64
			rec          ledger.TransactionRecord
		)
		if err := rows.Scan(&recID, &accID, &kind, &outcome, &amountMinor, &rec.Description, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		amount, err := money.FromMinorUnits(amountMinor)
		if err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", recID, err)
		}
		rec.ID = recID.String()
		rec.AccountID = accID.String()
		rec.Kind = ledger.Kind(kind)
		rec.Outcome = ledger.Outcome(outcome)
		rec.Amount = amount
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

type pgTx struct {
	tx pgx.Tx
}

const selectAccount = `SELECT id, account_number, balance_minor, version, created_at FROM accounts`

func (t *pgTx) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return scanAccount(t.tx.QueryRow(ctx, selectAccount+` WHERE id = $1`, accountID))
}

func (t *pgTx) GetAccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, selectAccount+` WHERE account_number = $1`, strings.TrimSpace(number)))
}

func (t *pgTx) SaveAccount(ctx context.Context, acc ledger.Account, expected ledger.Version) error {
	accountID, err := uuid.Parse(acc.ID)
	if err != nil {
		return ledger.ErrNotFound
	}
	cmd, err := t.tx.Exec(ctx, `UPDATE accounts SET balance_minor = $1, version = $2, updated_at = now()
        WHERE id = $3 AND version = $4`,
		acc.Balance.MinorUnits(), int64(acc.Version), accountID, int64(expected))
	if err != nil {
		return fmt.Errorf("update account %s: %w", acc.ID, err)
	}
	if cmd.RowsAffected() == 0 {
		return ledger.ErrVersionMismatch
	}
	return nil
}

func (t *pgTx) AppendTransactionRecord(ctx context.Context, rec ledger.TransactionRecord) error {
	recID, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	accountID, err := uuid.Parse(rec.AccountID)
	if err != nil {
		return ledger.ErrNotFound
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO account_transactions (id, account_id, kind, outcome, amount_minor, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		recID, accountID, string(rec.Kind), string(rec.Outcome), rec.Amount.MinorUnits(), rec.Description, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var (
		id        uuid.UUID
		acc       ledger.Account
		balance   int64
		version   int64
		createdAt time.Time
	)
	if err := row.Scan(&id, &acc.Number, &balance, &version, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ledger.ErrNotFound
		}
		return ledger.Account{}, fmt.Errorf("scan account: %w", err)
	}
	amount, err := money.FromMinorUnits(balance)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("account %s balance: %w", id, err)
	}
	acc.ID = id.String()
	acc.Balance = amount
	acc.Version = ledger.Version(version)
	acc.CreatedAt = createdAt.UTC()
	return acc, nil
}
