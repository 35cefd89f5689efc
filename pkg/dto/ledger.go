// Package dto contains the small create/update/filter structs that cross the
// repository boundary. Monetary amounts travel as minor-units integers plus a
// currency code, never as floating point.
package dto

import (
	"time"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/google/uuid"
)

// TransactionCreate is the payload for appending one transaction log entry.
type TransactionCreate struct {
	ID           uuid.UUID
	WalletID     uuid.UUID
	Type         ledger.TransactionType
	Amount       int64 // signed, minor units
	Currency     string
	ReferenceID  uuid.UUID
	BalanceAfter int64 // available balance snapshot, minor units
}

// TransactionFilter narrows ListForWallet results.
type TransactionFilter struct {
	Types       []ledger.TransactionType
	From        *time.Time
	To          *time.Time
	OldestFirst bool // newest-first for display, oldest-first for integrity replay
}

// Page is a limit/offset window. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// TipCreate is the payload for persisting a tip row.
type TipCreate struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	PostID      *uuid.UUID
	GrossAmount int64
	FeeAmount   int64
	NetAmount   int64
	Currency    string
	Message     string
	IsAnonymous bool
	Status      ledger.TipStatus
}

// PayoutCreate is the payload for persisting a payout row.
type PayoutCreate struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	RequestedAmount int64
	Currency        string
	Note            string
	Status          ledger.PayoutStatus
}

// PayoutUpdate carries a guarded payout state transition. ExpectStatus is the
// status the row must currently have; the update fails with ErrInvalidState
// otherwise, which makes replayed transitions detectable.
type PayoutUpdate struct {
	ExpectStatus      ledger.PayoutStatus
	Status            ledger.PayoutStatus
	ApproverID        *uuid.UUID
	RejectionReason   *string
	ProviderPayoutRef *string
	ResolvedAt        *time.Time
}

// ConnectAccountUpsert creates or refreshes a user's provider account binding.
type ConnectAccountUpsert struct {
	UserID             uuid.UUID
	ProviderAccountID  string
	OnboardingComplete bool
	Status             ledger.ConnectAccountStatus
}
