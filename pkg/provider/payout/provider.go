// Package payout defines the external payout-provider port and its Stripe
// implementation. The engines never call the provider while holding a wallet
// lock: initiation and settlement are recorded as separate, idempotent steps.
package payout

import (
	"context"

	"github.com/creatorpay/ledger/pkg/money"
)

// Result is the provider's verdict on one payout, delivered synchronously or
// via webhook, keyed by ProviderRef.
type Result struct {
	Succeeded     bool
	ProviderRef   string
	FailureReason string
}

// Provider moves held funds out of the platform to a connected account.
type Provider interface {
	// InitiatePayout transfers amount to the provider account identified by
	// accountRef and returns the provider's reference for the transfer.
	// idempotencyKey dedupes retried initiations of the same payout.
	InitiatePayout(ctx context.Context, accountRef string, amount money.Money, idempotencyKey string) (string, error)
}
