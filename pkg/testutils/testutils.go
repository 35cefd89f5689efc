// Package testutils provides in-memory fakes implementing the repository
// contracts, so engine behavior, including rollback of a failed unit of
// work, is testable without a real database.
package testutils

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	"github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
)

// FakeUoW is an in-memory repository.UnitOfWork. Do takes a snapshot of the
// store, runs the function against the snapshot, and commits it only on
// success, mirroring database transaction semantics. A mutex serializes
// units of work, mirroring row-level locking: concurrent Do calls against
// the same store observe each other's committed state, never intermediate
// state.
type FakeUoW struct {
	mu       sync.Mutex
	store    *state
	currency money.Code
	inTx     bool
}

// NewFakeUoW creates an empty in-memory unit of work in the given currency.
func NewFakeUoW(currency money.Code) *FakeUoW {
	return &FakeUoW{store: newState(), currency: currency}
}

// Do implements repository.UnitOfWork.
func (u *FakeUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.inTx {
		return fn(u)
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	snapshot := u.store.clone()
	txUow := &FakeUoW{store: snapshot, currency: u.currency, inTx: true}
	if err := fn(txUow); err != nil {
		return err
	}
	u.store = snapshot
	return nil
}

// GetRepository implements repository.UnitOfWork.
func (u *FakeUoW) GetRepository(repoType reflect.Type) (any, error) {
	switch repoType {
	case reflect.TypeOf((*repository.WalletRepository)(nil)).Elem():
		return &fakeWalletRepo{u: u}, nil
	case reflect.TypeOf((*repository.TransactionRepository)(nil)).Elem():
		return &fakeTransactionRepo{u: u}, nil
	case reflect.TypeOf((*repository.TipRepository)(nil)).Elem():
		return &fakeTipRepo{u: u}, nil
	case reflect.TypeOf((*repository.PayoutRepository)(nil)).Elem():
		return &fakePayoutRepo{u: u}, nil
	case reflect.TypeOf((*repository.ConnectAccountRepository)(nil)).Elem():
		return &fakeConnectAccountRepo{u: u}, nil
	}
	return nil, fmt.Errorf("no repository registered for type %v", repoType)
}

// WalletRepository implements repository.UnitOfWork.
func (u *FakeUoW) WalletRepository() (repository.WalletRepository, error) {
	return &fakeWalletRepo{u: u}, nil
}

// TransactionRepository implements repository.UnitOfWork.
func (u *FakeUoW) TransactionRepository() (repository.TransactionRepository, error) {
	return &fakeTransactionRepo{u: u}, nil
}

// TipRepository implements repository.UnitOfWork.
func (u *FakeUoW) TipRepository() (repository.TipRepository, error) {
	return &fakeTipRepo{u: u}, nil
}

// PayoutRepository implements repository.UnitOfWork.
func (u *FakeUoW) PayoutRepository() (repository.PayoutRepository, error) {
	return &fakePayoutRepo{u: u}, nil
}

// ConnectAccountRepository implements repository.UnitOfWork.
func (u *FakeUoW) ConnectAccountRepository() (repository.ConnectAccountRepository, error) {
	return &fakeConnectAccountRepo{u: u}, nil
}

// session returns the state the calling repository should operate on. Inside
// Do that is the transaction snapshot; outside it is the committed store,
// guarded against concurrent commits.
func (u *FakeUoW) session() *state {
	if u.inTx {
		return u.store
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.store
}

// SeedConnectAccount installs a connect-account binding directly, bypassing
// the provider.
func (u *FakeUoW) SeedConnectAccount(account ledger.ConnectAccount) {
	u.session().accounts[account.UserID] = &account
}

// SeedBalance credits the user's wallet, appending the funding entry that
// keeps the transaction log consistent with the stored balance.
func (u *FakeUoW) SeedBalance(ctx context.Context, userID uuid.UUID, amount int64) (*ledger.Wallet, error) {
	var wallet *ledger.Wallet
	err := u.Do(ctx, func(uow repository.UnitOfWork) error {
		wallets, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		txns, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		w, err := wallets.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		updated, err := wallets.ApplyDelta(ctx, w.ID, amount, 0)
		if err != nil {
			return err
		}
		if _, err := txns.Append(ctx, dto.TransactionCreate{
			WalletID:     w.ID,
			Type:         ledger.TxTipReceived,
			Amount:       amount,
			Currency:     u.currency.String(),
			ReferenceID:  uuid.New(),
			BalanceAfter: updated.Available.Amount(),
		}); err != nil {
			return err
		}
		wallet = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// FakeRelationshipChecker is an in-memory block list.
type FakeRelationshipChecker struct {
	mu      sync.Mutex
	blocked map[[2]uuid.UUID]bool
}

// NewFakeRelationshipChecker creates an empty block list.
func NewFakeRelationshipChecker() *FakeRelationshipChecker {
	return &FakeRelationshipChecker{blocked: make(map[[2]uuid.UUID]bool)}
}

// Block marks the pair as blocked in either direction.
func (f *FakeRelationshipChecker) Block(a, b uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[[2]uuid.UUID{a, b}] = true
	f.blocked[[2]uuid.UUID{b, a}] = true
}

// IsBlocked implements tipping.RelationshipChecker.
func (f *FakeRelationshipChecker) IsBlocked(_ context.Context, senderID, recipientID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[[2]uuid.UUID{senderID, recipientID}], nil
}
