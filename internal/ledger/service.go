// Package ledger is the balance-mutation engine: single-account deposits and
// withdrawals guarded by optimistic version checks, and two-account transfers
// committed atomically under an exclusive slot. Every mutation attempt that
// reaches business logic leaves an audit record.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/congo-pay/bankledger/internal/money"
)

const tracerName = "github.com/congo-pay/bankledger/internal/ledger"

// Ledger applies money movements against a Store.
type Ledger struct {
	store  Store
	slot   Slot
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithSlot replaces the process-local transfer slot, e.g. with a distributed lock.
func WithSlot(slot Slot) Option {
	return func(l *Ledger) {
		if slot != nil {
			l.slot = slot
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a Ledger over store. Without WithSlot it owns a LocalSlot.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		slot:   NewLocalSlot(),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Account reads the current record, including the version token a caller
// needs for its next mutation.
func (l *Ledger) Account(ctx context.Context, id string) (Account, error) {
	var acc Account
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrAccountNotFound
		}
		return Account{}, &OpError{Op: OpRead, AccountID: id, Err: err}
	}
	return acc, nil
}

// History lists the audit records attributed to an account, newest first.
func (l *Ledger) History(ctx context.Context, id string) ([]TransactionRecord, error) {
	if _, err := l.Account(ctx, id); err != nil {
		return nil, err
	}
	records, err := l.store.ListTransactionRecords(ctx, id)
	if err != nil {
		return nil, &OpError{Op: OpRead, AccountID: id, Err: err}
	}
	return records, nil
}

func (l *Ledger) fail(span trace.Span, op Op, accountID, destination string, amount money.Money, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &OpError{Op: op, AccountID: accountID, Destination: destination, Amount: amount, Err: err}
}
