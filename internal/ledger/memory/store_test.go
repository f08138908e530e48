package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/money"
)

func TestCreateAccountRejectsDuplicateNumber(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, "A-1", money.Zero)
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, "A-1", money.Zero)
	assert.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc, err := s.CreateAccount(ctx, "A-1", money.MustParse("10"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		updated := acc
		updated.Balance = money.MustParse("99")
		updated.Version = acc.Version.Next()
		require.NoError(t, tx.SaveAccount(ctx, updated, acc.Version))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, ok := s.get(acc.ID)
	require.True(t, ok)
	assert.Equal(t, "10.00", got.Balance.String())
	assert.Equal(t, ledger.InitialVersion, got.Version)
}

func TestCommitRevalidatesVersions(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc, err := s.CreateAccount(ctx, "A-1", money.MustParse("10"))
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		updated := acc
		updated.Version = acc.Version.Next()
		if err := tx.SaveAccount(ctx, updated, acc.Version); err != nil {
			return err
		}

		// a concurrent writer commits first
		inner := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			other := acc
			other.Balance = money.MustParse("1")
			other.Version = acc.Version.Next()
			return tx.SaveAccount(ctx, other, acc.Version)
		})
		require.NoError(t, inner)
		return nil
	})
	require.ErrorIs(t, err, ledger.ErrVersionMismatch)

	got, _ := s.get(acc.ID)
	assert.Equal(t, "1.00", got.Balance.String())
}

func TestReadYourWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc, err := s.CreateAccount(ctx, "A-1", money.Zero)
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		updated := acc
		updated.Balance = money.MustParse("5")
		updated.Version = acc.Version.Next()
		require.NoError(t, tx.SaveAccount(ctx, updated, acc.Version))

		got, err := tx.GetAccountByNumber(ctx, "A-1")
		require.NoError(t, err)
		assert.Equal(t, "5.00", got.Balance.String())

		assert.ErrorIs(t, tx.SaveAccount(ctx, updated, acc.Version), ledger.ErrVersionMismatch)
		return nil
	})
	require.NoError(t, err)
}

func TestFailNextCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc, err := s.CreateAccount(ctx, "A-1", money.Zero)
	require.NoError(t, err)

	injected := errors.New("disk full")
	s.FailNextCommit(injected)

	rec, err := ledger.NewTransactionRecord(acc.ID, ledger.KindDeposit, ledger.OutcomeCompleted, money.MustParse("1"), "note", acc.CreatedAt)
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.AppendTransactionRecord(ctx, rec)
	})
	require.ErrorIs(t, err, injected)
	assert.Equal(t, 0, s.RecordCount())

	// one-shot
	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.AppendTransactionRecord(ctx, rec)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.RecordCount())
}

func TestCancelledContextDoesNotCommit(t *testing.T) {
	s := New()
	acc, err := s.CreateAccount(context.Background(), "A-1", money.Zero)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		rec, err := ledger.NewTransactionRecord(acc.ID, ledger.KindDeposit, ledger.OutcomeCompleted, money.MustParse("1"), "note", acc.CreatedAt)
		if err != nil {
			return err
		}
		cancel()
		return tx.AppendTransactionRecord(ctx, rec)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.RecordCount())
}

func TestListTransactionRecordsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, err := s.CreateAccount(ctx, "A-1", money.Zero)
	require.NoError(t, err)
	b, err := s.CreateAccount(ctx, "B-1", money.Zero)
	require.NoError(t, err)

	for _, desc := range []string{"first", "second"} {
		rec, err := ledger.NewTransactionRecord(a.ID, ledger.KindDeposit, ledger.OutcomeCompleted, money.MustParse("1"), desc, a.CreatedAt)
		require.NoError(t, err)
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.AppendTransactionRecord(ctx, rec)
		}))
	}

	got, err := s.ListTransactionRecords(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Description)

	got, err = s.ListTransactionRecords(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
