package ledger

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/congo-pay/bankledger/internal/money"
)

// Deposit credits amount to the account, provided it is still at expected.
// On success exactly one completed record is written in the same storage
// transaction as the balance change. A credit past money.MaxAmount fails with
// ErrBalanceLimit and writes nothing.
func (l *Ledger) Deposit(ctx context.Context, accountID string, expected Version, amount money.Money) (Balance, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.deposit", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	if !amount.IsPositive() {
		return Balance{}, l.fail(span, OpDeposit, accountID, "", amount, ErrInvalidAmount)
	}

	var out Balance
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := loadAt(ctx, tx, accountID, expected)
		if err != nil {
			return err
		}

		credited, err := acc.Balance.Deposit(amount)
		if err != nil {
			return creditError(err)
		}

		updated := acc
		updated.Balance = credited
		updated.Version = acc.Version.Next()
		if err := tx.SaveAccount(ctx, updated, acc.Version); err != nil {
			return err
		}

		rec, err := NewTransactionRecord(acc.ID, KindDeposit, OutcomeCompleted, amount,
			depositDescription(amount, credited, acc.Number), l.now())
		if err != nil {
			return err
		}
		if err := tx.AppendTransactionRecord(ctx, rec); err != nil {
			return err
		}

		out = Balance{AccountID: acc.ID, Amount: credited, Version: updated.Version}
		return nil
	})
	if err != nil {
		return Balance{}, l.fail(span, OpDeposit, accountID, "", amount, normalize(err))
	}

	l.logger.Info("deposit completed",
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()),
		slog.String("version", out.Version.String()),
	)
	return out, nil
}

// Withdraw debits amount from the account, provided it is still at expected.
// When the balance cannot cover the amount nothing changes, a rejected record
// is still committed, and ErrInsufficientFunds is returned. Version and
// existence failures write no record.
func (l *Ledger) Withdraw(ctx context.Context, accountID string, expected Version, amount money.Money) (Balance, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.withdraw", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	if !amount.IsPositive() {
		return Balance{}, l.fail(span, OpWithdraw, accountID, "", amount, ErrInvalidAmount)
	}

	var (
		out      Balance
		rejected bool
	)
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := loadAt(ctx, tx, accountID, expected)
		if err != nil {
			return err
		}

		debited, ok := acc.Balance.Withdraw(amount)
		if !ok {
			// Decided against the version read above; nothing is saved, so no CAS.
			rec, err := NewTransactionRecord(acc.ID, KindWithdraw, OutcomeRejected, amount,
				withdrawRejectedDescription(amount, acc.Number), l.now())
			if err != nil {
				return err
			}
			if err := tx.AppendTransactionRecord(ctx, rec); err != nil {
				return err
			}
			rejected = true
			out = Balance{AccountID: acc.ID, Amount: acc.Balance, Version: acc.Version}
			return nil
		}

		updated := acc
		updated.Balance = debited
		updated.Version = acc.Version.Next()
		if err := tx.SaveAccount(ctx, updated, acc.Version); err != nil {
			return err
		}

		rec, err := NewTransactionRecord(acc.ID, KindWithdraw, OutcomeCompleted, amount,
			withdrawDescription(amount, debited, acc.Number), l.now())
		if err != nil {
			return err
		}
		if err := tx.AppendTransactionRecord(ctx, rec); err != nil {
			return err
		}

		out = Balance{AccountID: acc.ID, Amount: debited, Version: updated.Version}
		return nil
	})
	if err != nil {
		return Balance{}, l.fail(span, OpWithdraw, accountID, "", amount, normalize(err))
	}

	if rejected {
		l.logger.Warn("withdraw rejected - insufficient funds",
			slog.String("account_id", accountID),
			slog.String("amount", amount.String()),
		)
		return out, l.fail(span, OpWithdraw, accountID, "", amount, ErrInsufficientFunds)
	}

	l.logger.Info("withdraw completed",
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()),
		slog.String("version", out.Version.String()),
	)
	return out, nil
}

// creditError maps a failed Money.Deposit onto the ledger taxonomy.
func creditError(err error) error {
	if errors.Is(err, money.ErrOverflow) {
		return ErrBalanceLimit
	}
	return ErrInvalidAmount
}

// loadAt reads an account and checks it is still at the expected version.
func loadAt(ctx context.Context, tx Tx, id string, expected Version) (Account, error) {
	acc, err := tx.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	if acc.Version != expected {
		return Account{}, ErrVersionConflict
	}
	return acc, nil
}
