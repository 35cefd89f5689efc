package repository

import (
	"context"
	"reflect"
)

// UnitOfWork defines the contract for transactional work and type-safe
// repository access.
//
// Why is GetRepository part of UnitOfWork?
// - Ensures all repositories use the same DB session/transaction for true atomicity.
// - Keeps engine code focused on ledger semantics.
// - Centralizes repository wiring and registry for maintainability.
// - Prevents accidental use of the wrong DB session (which would break transactionality).
//
// Every money-moving operation (sendTip, refundTip, requestPayout, decide,
// settle) runs inside exactly one Do call: the paired wallet delta and
// transaction append either both commit or neither does.
type UnitOfWork interface {
	// Do executes the given function within a transaction boundary.
	// The provided function receives a UnitOfWork bound to that transaction.
	// If the function returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetRepository returns a repository of the requested type, bound to the
	// current transaction/session.
	// Example:
	//   repoAny, err := uow.GetRepository(reflect.TypeOf((*WalletRepository)(nil)).Elem())
	//   repo := repoAny.(WalletRepository)
	GetRepository(repoType reflect.Type) (any, error)

	// Type-safe repository access methods (convenience methods)
	WalletRepository() (WalletRepository, error)
	TransactionRepository() (TransactionRepository, error)
	TipRepository() (TipRepository, error)
	PayoutRepository() (PayoutRepository, error)
	ConnectAccountRepository() (ConnectAccountRepository, error)
}
