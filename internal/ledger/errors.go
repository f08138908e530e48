package ledger

import (
	"errors"
	"strings"

	"github.com/congo-pay/bankledger/internal/money"
)

var (
	// ErrAccountNotFound occurs when the account being mutated does not exist,
	// typically because it was removed after the caller read it.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDestinationNotFound occurs when no account carries the transfer destination number.
	ErrDestinationNotFound = errors.New("destination account not found")

	// ErrSelfTransfer occurs when sender and destination resolve to the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")

	// ErrInvalidAmount occurs when an amount is not strictly positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds is a business-rule rejection: the balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrVersionConflict means another writer changed the account since the caller
	// read it. The caller may re-read and resubmit.
	ErrVersionConflict = errors.New("account was modified concurrently")

	// ErrBalanceLimit is a business-rule rejection: the credit would push the
	// balance past the largest storable amount.
	ErrBalanceLimit = errors.New("balance would exceed the maximum amount")

	// ErrTransferFailed wraps any failure during the commit phase of a transfer.
	// Nothing was applied.
	ErrTransferFailed = errors.New("transfer failed")
)

// Op names the ledger operation that produced an error.
type Op string

const (
	OpDeposit  Op = "deposit"
	OpWithdraw Op = "withdraw"
	OpTransfer Op = "transfer"
	OpRead     Op = "read"
)

// OpError carries enough context for a caller to render a failure.
type OpError struct {
	Op          Op
	AccountID   string
	Destination string
	Amount      money.Money
	Err         error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Op))
	if e.AccountID != "" {
		b.WriteString(" account ")
		b.WriteString(e.AccountID)
	}
	if e.Destination != "" {
		b.WriteString(" to ")
		b.WriteString(e.Destination)
	}
	if e.Amount.IsPositive() {
		b.WriteString(" amount ")
		b.WriteString(e.Amount.String())
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// Retryable reports whether err is a structural failure that may succeed when
// resubmitted with freshly read state. Business rejections are not retryable.
func Retryable(err error) bool {
	if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrBalanceLimit) {
		return false
	}
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrTransferFailed)
}

// normalize maps storage-level errors onto the ledger taxonomy.
func normalize(err error) error {
	if errors.Is(err, ErrVersionMismatch) && !errors.Is(err, ErrVersionConflict) {
		return ErrVersionConflict
	}
	return err
}
