// Package banking is the caller-facing layer over the ledger: it parses
// client input, invokes balance and transfer operations, and notifies
// account holders about committed transfers.
package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/money"
	"github.com/congo-pay/bankledger/internal/notification"
)

var (
	// ErrInvalidVersion indicates the version token sent by the client is malformed.
	ErrInvalidVersion = errors.New("invalid version token")
	// ErrInvalidAccountNumber indicates an empty account number on provisioning.
	ErrInvalidAccountNumber = errors.New("account number is required")
)

// AccountOpener provisions accounts in the backing store.
type AccountOpener interface {
	CreateAccount(ctx context.Context, number string, opening money.Money) (ledger.Account, error)
}

// Service exposes ledger operations using client-facing string inputs.
type Service struct {
	ledger   *ledger.Ledger
	accounts AccountOpener
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a banking service. notifier may be nil.
func NewService(l *ledger.Ledger, accounts AccountOpener, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: l, accounts: accounts, notifier: notifier, logger: logger}
}

// OpenInput captures a new account request.
type OpenInput struct {
	Number         string
	OpeningBalance string
}

// MutationInput captures a single-account deposit or withdrawal.
type MutationInput struct {
	AccountID string
	Version   string
	Amount    string
}

// TransferInput captures a transfer from an account to a destination number.
type TransferInput struct {
	AccountID   string
	Version     string
	Destination string
	Amount      string
}

// Open provisions an account. An empty opening balance means zero.
func (s *Service) Open(ctx context.Context, in OpenInput) (ledger.Account, error) {
	number := strings.TrimSpace(in.Number)
	if number == "" {
		return ledger.Account{}, ErrInvalidAccountNumber
	}
	opening := money.Zero
	if strings.TrimSpace(in.OpeningBalance) != "" {
		var err error
		if opening, err = money.Parse(in.OpeningBalance); err != nil {
			return ledger.Account{}, fmt.Errorf("%w: %w", ledger.ErrInvalidAmount, err)
		}
	}
	acc, err := s.accounts.CreateAccount(ctx, number, opening)
	if err != nil {
		return ledger.Account{}, err
	}
	s.logger.InfoContext(ctx, "account opened", slog.String("account_id", acc.ID), slog.String("account_number", acc.Number))
	return acc, nil
}

// Account returns the current balance and version token.
func (s *Service) Account(ctx context.Context, accountID string) (ledger.Account, error) {
	return s.ledger.Account(ctx, accountID)
}

// History returns the account's audit trail, newest first.
func (s *Service) History(ctx context.Context, accountID string) ([]ledger.TransactionRecord, error) {
	return s.ledger.History(ctx, accountID)
}

// Deposit credits an account.
func (s *Service) Deposit(ctx context.Context, in MutationInput) (ledger.Balance, error) {
	version, amount, err := parseMutation(in.Version, in.Amount)
	if err != nil {
		return ledger.Balance{}, err
	}
	return s.ledger.Deposit(ctx, in.AccountID, version, amount)
}

// Withdraw debits an account. On insufficient funds the returned balance is
// the unchanged current one, alongside the error.
func (s *Service) Withdraw(ctx context.Context, in MutationInput) (ledger.Balance, error) {
	version, amount, err := parseMutation(in.Version, in.Amount)
	if err != nil {
		return ledger.Balance{}, err
	}
	return s.ledger.Withdraw(ctx, in.AccountID, version, amount)
}

// Transfer moves funds and notifies both parties once committed.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (ledger.Receipt, error) {
	version, amount, err := parseMutation(in.Version, in.Amount)
	if err != nil {
		return ledger.Receipt{}, err
	}
	destination := strings.TrimSpace(in.Destination)

	receipt, err := s.ledger.Transfer(ctx, in.AccountID, version, destination, amount)
	if err != nil {
		return ledger.Receipt{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: receipt.ReceiverBalance.AccountID,
		Body:        fmt.Sprintf("You received %s from account %s", amount, in.AccountID),
	})
	s.notify(ctx, notification.Message{
		Kind:        notification.KindTransferSent,
		Destination: receipt.SenderBalance.AccountID,
		Body:        fmt.Sprintf("You sent %s to account %s", amount, destination),
	})
	return receipt, nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

func parseMutation(rawVersion, rawAmount string) (ledger.Version, money.Money, error) {
	version, err := ledger.ParseVersion(strings.TrimSpace(rawVersion))
	if err != nil {
		return 0, money.Money{}, fmt.Errorf("%w: %w", ErrInvalidVersion, err)
	}
	amount, err := money.Parse(rawAmount)
	if err != nil {
		return 0, money.Money{}, fmt.Errorf("%w: %w", ledger.ErrInvalidAmount, err)
	}
	return version, amount, nil
}
