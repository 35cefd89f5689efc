package money

import "errors"

// Common money package errors
var (
	// ErrInvalidCurrency is returned when a currency code is not valid ISO 4217.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrMismatchedCurrencies is returned when performing operations on money with
	// different currencies
	ErrMismatchedCurrencies = errors.New("mismatched currencies")

	// ErrNegativeAmount is returned when a non-negative amount is required
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrOverflow is returned when an arithmetic result does not fit in int64.
	ErrOverflow = errors.New("amount exceeds maximum safe integer value")
)
