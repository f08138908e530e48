package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/congo-pay/bankledger/internal/money"
)

// transferPlan is the read-only outcome of validation. It pins the sender
// version the commit phase must still observe.
type transferPlan struct {
	sender   Account
	receiver Account
	amount   money.Money
}

// Transfer moves amount from the sender to the account numbered destination.
//
// Validation is read-only and reports AccountNotFound, DestinationNotFound,
// SelfTransfer, VersionConflict, InsufficientFunds or BalanceLimit without
// writing anything.
// The commit runs under the transfer slot in one storage transaction; any
// failure there rolls everything back and is returned wrapped in
// ErrTransferFailed. Only a committed transfer writes a record, attributed to
// the sender.
func (l *Ledger) Transfer(ctx context.Context, senderID string, expected Version, destination string, amount money.Money) (Receipt, error) {
	destination = strings.TrimSpace(destination)
	ctx, span := l.tracer.Start(ctx, "ledger.transfer", trace.WithAttributes(
		attribute.String("account.id", senderID),
		attribute.String("destination.number", destination),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	if !amount.IsPositive() {
		return Receipt{}, l.fail(span, OpTransfer, senderID, destination, amount, ErrInvalidAmount)
	}

	plan, err := l.validateTransfer(ctx, senderID, expected, destination, amount)
	if err != nil {
		return Receipt{}, l.fail(span, OpTransfer, senderID, destination, amount, err)
	}

	receipt, err := l.commitTransfer(ctx, plan)
	if err != nil {
		l.logger.Error("transfer aborted",
			slog.String("account_id", senderID),
			slog.String("destination", destination),
			slog.String("amount", amount.String()),
			slog.Any("error", err),
		)
		return Receipt{}, l.fail(span, OpTransfer, senderID, destination, amount, fmt.Errorf("%w: %w", ErrTransferFailed, err))
	}

	l.logger.Info("transfer completed",
		slog.String("account_id", senderID),
		slog.String("destination", destination),
		slog.String("amount", amount.String()),
		slog.String("record_id", receipt.RecordID),
	)
	return receipt, nil
}

func (l *Ledger) validateTransfer(ctx context.Context, senderID string, expected Version, destination string, amount money.Money) (transferPlan, error) {
	var plan transferPlan
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sender, err := tx.GetAccount(ctx, senderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		receiver, err := tx.GetAccountByNumber(ctx, destination)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrDestinationNotFound
			}
			return err
		}

		if receiver.ID == sender.ID {
			return ErrSelfTransfer
		}
		if sender.Version != expected {
			return ErrVersionConflict
		}
		if _, ok := sender.Balance.Withdraw(amount); !ok {
			return ErrInsufficientFunds
		}
		if _, err := receiver.Balance.Deposit(amount); err != nil {
			return creditError(err)
		}

		plan = transferPlan{sender: sender, receiver: receiver, amount: amount}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			l.logger.Warn("transfer rejected - insufficient funds",
				slog.String("account_id", senderID),
				slog.String("amount", amount.String()),
			)
		}
		return transferPlan{}, normalize(err)
	}
	return plan, nil
}

func (l *Ledger) commitTransfer(ctx context.Context, plan transferPlan) (Receipt, error) {
	release, err := l.slot.Acquire(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("acquire transfer slot: %w", err)
	}
	defer release()

	var receipt Receipt
	err = l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sender, err := tx.GetAccount(ctx, plan.sender.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if sender.Version != plan.sender.Version {
			return ErrVersionConflict
		}

		receiver, err := tx.GetAccount(ctx, plan.receiver.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrDestinationNotFound
			}
			return err
		}

		debited, ok := sender.Balance.Withdraw(plan.amount)
		if !ok {
			return ErrInsufficientFunds
		}
		credited, err := receiver.Balance.Deposit(plan.amount)
		if err != nil {
			return creditError(err)
		}

		updatedSender := sender
		updatedSender.Balance = debited
		updatedSender.Version = sender.Version.Next()
		if err := tx.SaveAccount(ctx, updatedSender, sender.Version); err != nil {
			return err
		}

		updatedReceiver := receiver
		updatedReceiver.Balance = credited
		updatedReceiver.Version = receiver.Version.Next()
		if err := tx.SaveAccount(ctx, updatedReceiver, receiver.Version); err != nil {
			return err
		}

		committedAt := l.now()
		rec, err := NewTransactionRecord(sender.ID, KindTransfer, OutcomeCompleted, plan.amount,
			transferDescription(plan.amount, sender.Number, receiver.Number), committedAt)
		if err != nil {
			return err
		}
		if err := tx.AppendTransactionRecord(ctx, rec); err != nil {
			return err
		}

		receipt = Receipt{
			RecordID:        rec.ID,
			SenderBalance:   Balance{AccountID: sender.ID, Amount: debited, Version: updatedSender.Version},
			ReceiverBalance: Balance{AccountID: receiver.ID, Amount: credited, Version: updatedReceiver.Version},
			CommittedAt:     rec.Timestamp,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, normalize(err)
	}
	return receipt, nil
}
