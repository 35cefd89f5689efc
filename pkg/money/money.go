// Package money provides functionality for handling monetary values.
//
// It is a value object that represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit (e.g., cents for USD).
//   - Currency code must be valid ISO 4217 (3 uppercase letters).
//   - All arithmetic operations require matching currencies.
package money

import (
	"encoding/json"
	"fmt"
	"math"
)

// Amount represents a monetary amount as an integer in the
// smallest currency unit (e.g., cents for USD).
type Amount = int64

// basisPointScale is the divisor for basis-point rates (100% == 10000 bps).
const basisPointScale = 10_000

// Money represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit.
//   - Currency code must be valid ISO 4217.
//   - All arithmetic operations require matching currencies.
type Money struct {
	amount   Amount
	currency Code
}

// New creates a Money value from an amount in the smallest currency unit.
// An empty currency code defaults to the platform currency.
func New(amount Amount, currency Code) (Money, error) {
	if currency == "" {
		currency = DefaultCode
	}
	if !currency.IsValid() {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewPositive creates a Money value like New, but rejects amounts that are
// not strictly positive. Call sites that semantically require a positive
// amount (tip gross, payout request) use this constructor.
func NewPositive(amount Amount, currency Code) (Money, error) {
	m, err := New(amount, currency)
	if err != nil {
		return Money{}, err
	}
	if m.amount <= 0 {
		return Money{}, ErrNegativeAmount
	}
	return m, nil
}

// Zero returns a zero-valued Money in the given currency.
func Zero(currency Code) Money {
	if currency == "" {
		currency = DefaultCode
	}
	return Money{amount: 0, currency: currency}
}

// Amount returns the amount in the smallest currency unit.
func (m Money) Amount() Amount {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() Code {
	return m.currency
}

// Add adds another Money value.
// Invariants enforced:
//   - Currencies must match.
//   - Result must not overflow int64.
func (m Money) Add(other Money) (Money, error) {
	if !m.IsSameCurrency(other) {
		return Money{}, ErrMismatchedCurrencies
	}
	sum := m.amount + other.amount
	if (other.amount > 0 && sum < m.amount) || (other.amount < 0 && sum > m.amount) {
		return Money{}, ErrOverflow
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Subtract subtracts another Money value.
// Invariants enforced:
//   - Currencies must match.
//   - Result must not overflow int64.
func (m Money) Subtract(other Money) (Money, error) {
	return m.Add(other.Negate())
}

// Negate returns the Money value with the sign of the amount flipped.
func (m Money) Negate() Money {
	return Money{amount: -m.amount, currency: m.currency}
}

// Abs returns the absolute value of the Money amount.
func (m Money) Abs() Money {
	if m.amount < 0 {
		return m.Negate()
	}
	return m
}

// MulBasisPoints multiplies the amount by a rate expressed in basis points
// (1 bps == 0.01%), rounding half away from zero. This is the single rounding
// rule used for platform fee computation: the remainder after the fee stays
// with the counterparty.
func (m Money) MulBasisPoints(bps int64) (Money, error) {
	if bps < 0 {
		return Money{}, ErrNegativeAmount
	}
	if m.amount != 0 && bps != 0 {
		if m.Abs().amount > math.MaxInt64/bps {
			return Money{}, ErrOverflow
		}
	}
	product := m.amount * bps
	quotient := product / basisPointScale
	remainder := product % basisPointScale
	if remainder < 0 {
		remainder = -remainder
	}
	if remainder*2 >= basisPointScale {
		if product >= 0 {
			quotient++
		} else {
			quotient--
		}
	}
	return Money{amount: quotient, currency: m.currency}, nil
}

// Compare returns -1, 0 or 1 ordering m against other.
// Invariants enforced:
//   - Currencies must match.
func (m Money) Compare(other Money) (int, error) {
	if !m.IsSameCurrency(other) {
		return 0, ErrMismatchedCurrencies
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equals checks if the current Money value equals another Money value.
// Returns false if currencies do not match.
func (m Money) Equals(other Money) bool {
	return m.IsSameCurrency(other) && m.amount == other.amount
}

// GreaterThan reports whether m is greater than other.
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c > 0, err
}

// LessThan reports whether m is less than other.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c < 0, err
}

// IsSameCurrency checks if the current Money value has the same currency as another.
func (m Money) IsSameCurrency(other Money) bool {
	return m.currency == other.currency
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool {
	return m.amount < 0
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount == 0
}

// String returns a human-readable representation, e.g. "5.00 USD".
func (m Money) String() string {
	decimals := m.currency.Decimals()
	if decimals == 0 {
		return fmt.Sprintf("%d %s", m.amount, m.currency)
	}
	divisor := int64(math.Pow10(decimals))
	whole := m.amount / divisor
	frac := m.amount % divisor
	if frac < 0 {
		frac = -frac
	}
	if m.amount < 0 && whole == 0 {
		return fmt.Sprintf("-0.%0*d %s", decimals, frac, m.currency)
	}
	return fmt.Sprintf("%d.%0*d %s", whole, decimals, frac, m.currency)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"amount":   m.amount,
		"currency": m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parsed, err := New(aux.Amount, Code(aux.Currency))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
