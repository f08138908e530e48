// Package money implements the non-negative amount type used for balances and
// movements. Values are decimal with at most two fractional digits; no
// floating-point arithmetic is involved at any point.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by a Money value.
const Scale = 2

var (
	// ErrNegative is returned when constructing Money from a negative value.
	ErrNegative = errors.New("money cannot be negative")
	// ErrPrecision is returned when a value carries more than two fractional digits.
	ErrPrecision = errors.New("money supports at most two decimal places")
	// ErrInvalidAmount is returned when a movement amount is not strictly positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrOverflow is returned when a value or sum exceeds MaxAmount.
	ErrOverflow = errors.New("money exceeds the maximum representable amount")
)

// Money is an immutable non-negative amount. The zero value is 0.00.
type Money struct {
	amount decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// maxAmount is the largest value whose minor units fit in an int64, the
// storage representation.
var maxAmount = decimal.New(math.MaxInt64, -Scale)

// MaxAmount is the largest representable Money, 92233720368547758.07.
func MaxAmount() Money { return Money{amount: maxAmount} }

// New validates d and wraps it.
func New(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegative
	}
	if !d.Equal(d.Truncate(Scale)) {
		return Money{}, ErrPrecision
	}
	if d.GreaterThan(maxAmount) {
		return Money{}, ErrOverflow
	}
	return Money{amount: d}, nil
}

// Parse reads a decimal string such as "12.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return New(d)
}

// MustParse is Parse for constants and tests; it panics on invalid input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMinorUnits builds Money from an integer count of cents.
func FromMinorUnits(units int64) (Money, error) {
	return New(decimal.New(units, -Scale))
}

// MinorUnits returns the amount as an integer count of cents.
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(Scale).IntPart()
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.amount }

// IsZero reports whether m is 0.00.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive reports whether m is strictly greater than zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Cmp compares m and o, returning -1, 0 or +1.
func (m Money) Cmp(o Money) int { return m.amount.Cmp(o.amount) }

// Equal reports whether m and o hold the same amount.
func (m Money) Equal(o Money) bool { return m.amount.Equal(o.amount) }

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.amount.StringFixed(Scale) }

// Deposit returns m + amount. The amount must be strictly positive and the
// sum must not exceed MaxAmount.
func (m Money) Deposit(amount Money) (Money, error) {
	if !amount.IsPositive() {
		return m, ErrInvalidAmount
	}
	sum := m.amount.Add(amount.amount)
	if sum.GreaterThan(maxAmount) {
		return m, ErrOverflow
	}
	return Money{amount: sum}, nil
}

// Withdraw returns m - amount and true, or m unchanged and false when the
// result would be negative or the amount is not positive. There is no
// partial withdrawal.
func (m Money) Withdraw(amount Money) (Money, bool) {
	if !amount.IsPositive() {
		return m, false
	}
	next := m.amount.Sub(amount.amount)
	if next.IsNegative() {
		return m, false
	}
	return Money{amount: next}, true
}

// MarshalText renders m for JSON and other text encodings.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses and validates a text amount.
func (m *Money) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
