package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/bankledger/internal/money"
)

func TestVersionToken(t *testing.T) {
	v := InitialVersion
	assert.Equal(t, Version(2), v.Next())

	parsed, err := ParseVersion(v.Next().String())
	require.NoError(t, err)
	assert.Equal(t, v.Next(), parsed)

	for _, bad := range []string{"", "abc", "0", "-4"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewTransactionRecordRequiresDescription(t *testing.T) {
	_, err := NewTransactionRecord("acc-1", KindWithdraw, OutcomeRejected, money.MustParse("1"), "  ", time.Now())
	assert.ErrorIs(t, err, ErrEmptyDescription)

	_, err = NewTransactionRecord("", KindWithdraw, OutcomeRejected, money.MustParse("1"), "note", time.Now())
	assert.ErrorIs(t, err, ErrMissingAccount)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("WAT", 3600))
	rec, err := NewTransactionRecord("acc-1", KindDeposit, OutcomeCompleted, money.MustParse("1"), "note", at)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: ErrVersionConflict, want: true},
		{err: fmt.Errorf("%w: %w", ErrTransferFailed, errors.New("timeout")), want: true},
		{err: &OpError{Op: OpWithdraw, Err: ErrInsufficientFunds}, want: false},
		{err: ErrAccountNotFound, want: false},
		{err: ErrSelfTransfer, want: false},
		{err: &OpError{Op: OpDeposit, Err: ErrBalanceLimit}, want: false},
		{err: nil, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Retryable(tt.err), "%v", tt.err)
	}
}

func TestOpErrorMessage(t *testing.T) {
	err := &OpError{
		Op:          OpTransfer,
		AccountID:   "acc-1",
		Destination: "B-100",
		Amount:      money.MustParse("60"),
		Err:         ErrInsufficientFunds,
	}
	assert.Equal(t, "transfer account acc-1 to B-100 amount 60.00: insufficient funds", err.Error())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ErrVersionConflict, normalize(fmt.Errorf("commit: %w", ErrVersionMismatch)))
	assert.Equal(t, ErrInsufficientFunds, normalize(ErrInsufficientFunds))
}

func TestLocalSlotIsExclusive(t *testing.T) {
	slot := NewLocalSlot()

	release, err := slot.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = slot.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent

	again, err := slot.Acquire(context.Background())
	require.NoError(t, err)
	again()
}
