//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/congo-pay/bankledger/internal/infra"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/ledger/postgres"
	"github.com/congo-pay/bankledger/internal/logging"
	"github.com/congo-pay/bankledger/internal/money"
)

// setupStore starts a disposable PostgreSQL container, applies the schema and
// returns a store on it.
func setupStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, infra.Migrate(dsn, logging.Discard()))

	pool, err := infra.NewPostgresPool(ctx, dsn, 8)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return postgres.New(pool), pool
}

func TestIntegration_Store_CreateAndDuplicate(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	acc, err := store.CreateAccount(ctx, "A-100", money.MustParse("12.34"))
	require.NoError(t, err)
	assert.Equal(t, ledger.InitialVersion, acc.Version)

	_, err = store.CreateAccount(ctx, "A-100", money.Zero)
	assert.ErrorIs(t, err, ledger.ErrDuplicateNumber)

	err = store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.GetAccountByNumber(ctx, "A-100")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
		assert.Equal(t, "12.34", got.Balance.String())

		_, err = tx.GetAccount(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestIntegration_Store_CompareAndSwap(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	acc, err := store.CreateAccount(ctx, "A-100", money.MustParse("10"))
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		stale := acc
		stale.Version = acc.Version + 5
		return tx.SaveAccount(ctx, stale, acc.Version+4)
	})
	assert.ErrorIs(t, err, ledger.ErrVersionMismatch)
}

func TestIntegration_Store_RollbackOnError(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	acc, err := store.CreateAccount(ctx, "A-100", money.MustParse("10"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		updated := acc
		updated.Balance = money.MustParse("1")
		updated.Version = acc.Version.Next()
		require.NoError(t, tx.SaveAccount(ctx, updated, acc.Version))

		rec, err := ledger.NewTransactionRecord(acc.ID, ledger.KindWithdraw, ledger.OutcomeCompleted, money.MustParse("9"), "note", time.Now())
		require.NoError(t, err)
		require.NoError(t, tx.AppendTransactionRecord(ctx, rec))
		return boom
	})
	require.ErrorIs(t, err, boom)

	l := ledger.New(store, ledger.WithLogger(logging.Discard()))
	got, err := l.Account(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Balance.String())
	assert.Equal(t, acc.Version, got.Version)

	records, err := store.ListTransactionRecords(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIntegration_Ledger_EndToEnd(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	l := ledger.New(store, ledger.WithLogger(logging.Discard()))

	a, err := store.CreateAccount(ctx, "A-100", money.MustParse("100"))
	require.NoError(t, err)
	b, err := store.CreateAccount(ctx, "B-100", money.MustParse("10"))
	require.NoError(t, err)

	bal, err := l.Withdraw(ctx, a.ID, a.Version, money.MustParse("30"))
	require.NoError(t, err)
	assert.Equal(t, "70.00", bal.Amount.String())

	_, err = l.Withdraw(ctx, a.ID, a.Version, money.MustParse("1"))
	require.ErrorIs(t, err, ledger.ErrVersionConflict)

	_, err = l.Withdraw(ctx, a.ID, bal.Version, money.MustParse("500"))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	receipt, err := l.Transfer(ctx, a.ID, bal.Version, "B-100", money.MustParse("20"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", receipt.SenderBalance.Amount.String())
	assert.Equal(t, "30.00", receipt.ReceiverBalance.Amount.String())

	recordsA, err := l.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, recordsA, 3)
	assert.Equal(t, ledger.KindTransfer, recordsA[0].Kind)
	assert.Equal(t, ledger.OutcomeRejected, recordsA[1].Outcome)

	recordsB, err := l.History(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, recordsB)
}

func TestIntegration_Ledger_ConcurrentWithdrawSameVersion(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	l := ledger.New(store, ledger.WithLogger(logging.Discard()))
	acc, err := store.CreateAccount(ctx, "A-100", money.MustParse("100"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		results = make([]error, 4)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.Withdraw(ctx, acc.ID, acc.Version, money.MustParse("10"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ledger.ErrVersionConflict)
	}
	assert.Equal(t, 1, ok)

	got, err := l.Account(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "90.00", got.Balance.String())
}
