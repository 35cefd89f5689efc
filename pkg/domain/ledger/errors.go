package ledger

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. All five money-moving operations return one of these
// (or a wrapped repository error); the caller maps them to user-facing messages.
var (
	// ErrInsufficientFunds is returned when a wallet balance is too low for the
	// requested debit. Recoverable, user-facing.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned when an amount is outside the configured bounds.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidState is returned when an operation is attempted from a
	// non-permitted lifecycle state (e.g. approving an already-settled payout).
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrNotOnboarded is returned when payout approval is attempted for a user
	// without a completed connect account.
	ErrNotOnboarded = errors.New("payout account onboarding not complete")

	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrSelfTip is returned when a user attempts to tip themselves.
	ErrSelfTip = errors.New("cannot tip yourself")

	// ErrBlockedRelationship is returned when the sender is blocked by or has
	// blocked the recipient.
	ErrBlockedRelationship = errors.New("tip not allowed between these users")

	// ErrPayoutInFlight is returned when a user already has a pending or
	// approved payout holding funds.
	ErrPayoutInFlight = errors.New("another payout is already in flight")
)

// ProviderError wraps a failure from the external payout provider. It is not
// a permanent failure: the reconciliation sweep retries approved payouts whose
// provider call did not complete.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payout provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
