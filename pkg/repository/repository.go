// Package repository defines the persistence contracts of the ledger. The
// gorm-backed implementations live in infra/repository; pkg/testutils carries
// in-memory fakes implementing the same interfaces.
package repository

import (
	"context"
	"time"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/google/uuid"
)

// WalletRepository is the wallet store. ApplyDelta is the only balance
// mutator in the entire codebase: no other code path is permitted to touch
// the balance fields, and it must run inside the same unit of work as the
// transaction append that justifies the delta.
type WalletRepository interface {
	// GetOrCreate returns the user's wallet, creating a zero-balance wallet on
	// first access. Idempotent; no side effect if the wallet exists.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*ledger.Wallet, error)

	// Get returns a wallet by its ID.
	Get(ctx context.Context, id uuid.UUID) (*ledger.Wallet, error)

	// GetByUser returns a wallet by owner.
	GetByUser(ctx context.Context, userID uuid.UUID) (*ledger.Wallet, error)

	// ApplyDelta atomically adjusts available and pending by the given signed
	// minor-unit deltas and returns the resulting wallet. Fails with
	// ledger.ErrInsufficientFunds if either resulting balance would go
	// negative; the check and the write are one atomic statement.
	ApplyDelta(ctx context.Context, walletID uuid.UUID, availableDelta, pendingDelta int64) (*ledger.Wallet, error)

	// AddLifetime bumps the lifetime earned/withdrawn counters.
	AddLifetime(ctx context.Context, walletID uuid.UUID, earnedDelta, withdrawnDelta int64) error

	// Archive soft-deletes the wallet on account deletion. The row and its
	// transaction log survive for auditing.
	Archive(ctx context.Context, userID uuid.UUID) error

	// ListIDs returns the IDs of all live wallets, for the integrity sweep.
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TransactionRepository is the append-only transaction log.
type TransactionRepository interface {
	// Append inserts one immutable entry and returns it with server-assigned
	// timestamps. Entries are never updated or deleted.
	Append(ctx context.Context, create dto.TransactionCreate) (*ledger.Transaction, error)

	// ListForWallet returns entries for a wallet, newest-first unless
	// filter.OldestFirst is set.
	ListForWallet(ctx context.Context, walletID uuid.UUID, filter dto.TransactionFilter, page dto.Page) ([]*ledger.Transaction, error)
}

// TipRepository persists tips.
type TipRepository interface {
	Create(ctx context.Context, create dto.TipCreate) error
	Get(ctx context.Context, id uuid.UUID) (*ledger.Tip, error)

	// UpdateStatus performs a guarded transition: the row must currently be in
	// the from status, otherwise ledger.ErrInvalidState is returned. This makes
	// a concurrent double refund lose the race instead of double-crediting.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to ledger.TipStatus) error

	Stats(ctx context.Context, userID uuid.UUID) (*ledger.TipStats, error)
}

// PayoutRepository persists payouts.
type PayoutRepository interface {
	Create(ctx context.Context, create dto.PayoutCreate) error
	Get(ctx context.Context, id uuid.UUID) (*ledger.Payout, error)

	// Update performs the guarded transition described by update.ExpectStatus.
	Update(ctx context.Context, id uuid.UUID, update dto.PayoutUpdate) error

	// HasOpen reports whether the user has a payout still holding funds
	// (PENDING, APPROVED or PROCESSING).
	HasOpen(ctx context.Context, userID uuid.UUID) (bool, error)

	// ListByStatusOlderThan returns payouts in the given status created before
	// the threshold. The reconciliation sweep uses it to re-check provider
	// state for payouts stuck in APPROVED.
	ListByStatusOlderThan(ctx context.Context, status ledger.PayoutStatus, threshold time.Time) ([]*ledger.Payout, error)

	Stats(ctx context.Context, userID uuid.UUID) (*ledger.PayoutStats, error)
}

// ConnectAccountRepository persists the external payout-account bindings.
type ConnectAccountRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*ledger.ConnectAccount, error)
	GetByProviderID(ctx context.Context, providerAccountID string) (*ledger.ConnectAccount, error)
	Upsert(ctx context.Context, upsert dto.ConnectAccountUpsert) error
}
