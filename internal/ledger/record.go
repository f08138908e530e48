package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/bankledger/internal/money"
)

var (
	// ErrEmptyDescription rejects audit records without a human-readable outcome.
	ErrEmptyDescription = errors.New("transaction record description is required")
	// ErrMissingAccount rejects audit records not attributed to an account.
	ErrMissingAccount = errors.New("transaction record account is required")
)

// Kind classifies the movement a record describes.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindTransfer Kind = "transfer"
)

// Outcome tells whether the recorded attempt was applied.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
)

// TransactionRecord is one immutable entry of the append-only audit trail.
type TransactionRecord struct {
	ID          string
	AccountID   string
	Kind        Kind
	Outcome     Outcome
	Amount      money.Money
	Description string
	Timestamp   time.Time
}

// NewTransactionRecord validates and builds a record with a fresh identifier.
func NewTransactionRecord(accountID string, kind Kind, outcome Outcome, amount money.Money, description string, at time.Time) (TransactionRecord, error) {
	if strings.TrimSpace(accountID) == "" {
		return TransactionRecord{}, ErrMissingAccount
	}
	if strings.TrimSpace(description) == "" {
		return TransactionRecord{}, ErrEmptyDescription
	}
	return TransactionRecord{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        kind,
		Outcome:     outcome,
		Amount:      amount,
		Description: description,
		Timestamp:   at.UTC(),
	}, nil
}

func depositDescription(amount, balance money.Money, number string) string {
	return fmt.Sprintf("Successful deposit amount: %s. Total balance: %s. Account number: %s", amount, balance, number)
}

func withdrawDescription(amount, balance money.Money, number string) string {
	return fmt.Sprintf("Successful withdraw amount: %s. Total balance: %s. Account number: %s", amount, balance, number)
}

func withdrawRejectedDescription(amount money.Money, number string) string {
	return fmt.Sprintf("Unable to withdraw amount: %s. Insufficient balance. Account number: %s", amount, number)
}

func transferDescription(amount money.Money, from, to string) string {
	return fmt.Sprintf("Successful transfer amount: %s from %s to %s", amount, from, to)
}
