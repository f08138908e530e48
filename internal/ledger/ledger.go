package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/congo-pay/bankledger/internal/money"
)

var (
	// ErrNotFound is returned by storage adapters when a lookup matches no account.
	ErrNotFound = errors.New("account not found in store")

	// ErrVersionMismatch is returned by storage adapters when a compare-and-swap
	// on an account version fails because another writer got there first.
	ErrVersionMismatch = errors.New("account version mismatch")

	// ErrDuplicateNumber is returned by storage adapters when provisioning an
	// account number that is already taken.
	ErrDuplicateNumber = errors.New("account number already exists")
)

// Version is the opaque concurrency token stored alongside an account balance.
// It changes on every successful mutation; callers must treat it as opaque and
// hand back exactly what they read.
type Version int64

// InitialVersion is assigned to newly provisioned accounts.
const InitialVersion Version = 1

// Next returns the version that follows v.
func (v Version) Next() Version { return v + 1 }

// String renders the token for transport.
func (v Version) String() string { return strconv.FormatInt(int64(v), 10) }

// ParseVersion decodes a token previously produced by Version.String.
func ParseVersion(s string) (Version, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < int64(InitialVersion) {
		return 0, fmt.Errorf("invalid version token %q", s)
	}
	return Version(n), nil
}

// Account is the durable ledger record for one account.
type Account struct {
	ID        string
	Number    string
	Balance   money.Money
	Version   Version
	CreatedAt time.Time
}

// Balance is the state of an account after a successful single-account mutation.
type Balance struct {
	AccountID string
	Amount    money.Money
	Version   Version
}

// Receipt describes a committed transfer.
type Receipt struct {
	RecordID        string
	SenderBalance   Balance
	ReceiverBalance Balance
	CommittedAt     time.Time
}

// Tx is one atomic unit of work against the backing store. Writes become
// visible only when the surrounding Store.WithinTx call commits.
type Tx interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByNumber(ctx context.Context, number string) (Account, error)
	// SaveAccount persists acc only if the stored version still equals expected,
	// returning ErrVersionMismatch otherwise.
	SaveAccount(ctx context.Context, acc Account, expected Version) error
	AppendTransactionRecord(ctx context.Context, rec TransactionRecord) error
}

// Store is the storage collaborator consumed by the ledger.
type Store interface {
	// WithinTx runs fn inside a transaction, committing when fn returns nil and
	// rolling back every write otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListTransactionRecords returns the records attributed to an account, newest first.
	ListTransactionRecords(ctx context.Context, accountID string) ([]TransactionRecord, error)
}
