// Package ledger holds the domain types of the monetization ledger: wallets,
// the append-only transaction log, tips, payouts and the external payout
// account binding.
//
// Invariants:
//   - Wallet.Available and Wallet.Pending are never negative.
//   - Every balance mutation is paired with exactly one transaction log entry
//     inside the same unit of work.
//   - Transaction log entries are never updated or deleted; corrections are
//     modeled as new offsetting entries.
package ledger

import (
	"time"

	"github.com/creatorpay/ledger/pkg/money"
	"github.com/google/uuid"
)

// TransactionType classifies a transaction log entry.
type TransactionType string

// Transaction log entry types.
const (
	TxTipSent            TransactionType = "TIP_SENT"
	TxTipReceived        TransactionType = "TIP_RECEIVED"
	TxPayoutRequested    TransactionType = "PAYOUT_REQUESTED"
	TxPayoutCompleted    TransactionType = "PAYOUT_COMPLETED"
	TxPayoutFailedRefund TransactionType = "PAYOUT_FAILED_REFUND"
	TxPlatformFee        TransactionType = "PLATFORM_FEE"
	TxRefund             TransactionType = "REFUND"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TxTipSent, TxTipReceived, TxPayoutRequested, TxPayoutCompleted,
		TxPayoutFailedRefund, TxPlatformFee, TxRefund:
		return true
	}
	return false
}

// TipStatus is the lifecycle state of a tip.
type TipStatus string

// Tip lifecycle states. Capture is synchronous, so CREATED is never
// observable outside the unit of work that completes the tip; it exists for
// forward compatibility with asynchronous capture.
const (
	TipCreated   TipStatus = "CREATED"
	TipCompleted TipStatus = "COMPLETED"
	TipRefunded  TipStatus = "REFUNDED"
	TipFailed    TipStatus = "FAILED"
)

// PayoutStatus is the lifecycle state of a payout.
//
// PENDING --approve--> APPROVED --initiate--> PROCESSING --settle--> COMPLETED|FAILED
// PENDING --reject--> REJECTED
type PayoutStatus string

// Payout lifecycle states.
const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutApproved   PayoutStatus = "APPROVED"
	PayoutRejected   PayoutStatus = "REJECTED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
)

// IsTerminal reports whether the payout can no longer change state.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutRejected || s == PayoutCompleted || s == PayoutFailed
}

// IsOpen reports whether the payout still holds funds in pending.
func (s PayoutStatus) IsOpen() bool {
	return s == PayoutPending || s == PayoutApproved || s == PayoutProcessing
}

// ConnectAccountStatus mirrors the provider-side state of a connect account.
type ConnectAccountStatus string

// Connect account states.
const (
	ConnectPending    ConnectAccountStatus = "PENDING"
	ConnectActive     ConnectAccountStatus = "ACTIVE"
	ConnectRestricted ConnectAccountStatus = "RESTRICTED"
	ConnectDisabled   ConnectAccountStatus = "DISABLED"
)

// Wallet is the per-user balance record. Owned by exactly one user; created
// lazily on first wallet-touching action and never hard-deleted.
type Wallet struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Available         money.Money // spendable now
	Pending           money.Money // held for in-flight payouts
	LifetimeEarned    money.Money
	LifetimeWithdrawn money.Money
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Total returns available + pending: the value currently inside the wallet.
func (w *Wallet) Total() (money.Money, error) {
	return w.Available.Add(w.Pending)
}

// Transaction is one immutable entry of the transaction log. Amount is signed
// relative to the balance field the entry touches: available for every type
// except PAYOUT_COMPLETED, which debits pending.
type Transaction struct {
	ID           uuid.UUID
	WalletID     uuid.UUID
	Type         TransactionType
	Amount       money.Money
	ReferenceID  uuid.UUID   // the Tip or Payout that caused the entry
	BalanceAfter money.Money // available balance snapshot after the paired delta
	CreatedAt    time.Time
}

// Tip is a peer-to-peer transfer with a platform fee taken from the gross
// amount. Net = Gross - Fee is what the recipient receives.
type Tip struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	PostID      *uuid.UUID
	GrossAmount money.Money
	FeeAmount   money.Money
	NetAmount   money.Money
	Message     string
	IsAnonymous bool
	Status      TipStatus
	CreatedAt   time.Time
}

// Payout is a withdrawal request driving the approve/settle workflow.
// While the payout is open its RequestedAmount is held in the wallet's
// pending balance, which prevents double-withdrawal of the same funds.
type Payout struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	RequestedAmount   money.Money
	Status            PayoutStatus
	Note              string
	ApproverID        *uuid.UUID
	RejectionReason   string
	ProviderPayoutRef string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// ConnectAccount binds a user to their external payout-provider account.
// A payout may only be approved once OnboardingComplete is true.
type ConnectAccount struct {
	UserID             uuid.UUID
	ProviderAccountID  string
	OnboardingComplete bool
	Status             ConnectAccountStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TipStats aggregates a user's tipping activity.
type TipStats struct {
	SentCount     int64
	SentTotal     money.Money // gross, minor units
	ReceivedCount int64
	ReceivedTotal money.Money // net, minor units
}

// PayoutStats aggregates a user's payout activity.
type PayoutStats struct {
	RequestedCount int64
	CompletedCount int64
	CompletedTotal money.Money
	FailedCount    int64
	RejectedCount  int64
}
