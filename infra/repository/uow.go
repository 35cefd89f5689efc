// Package repository contains the gorm-backed implementations of the ledger
// persistence contracts.
package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/creatorpay/ledger/infra/repository/connectaccount"
	"github.com/creatorpay/ledger/infra/repository/payout"
	"github.com/creatorpay/ledger/infra/repository/tip"
	"github.com/creatorpay/ledger/infra/repository/transaction"
	"github.com/creatorpay/ledger/infra/repository/wallet"
	"github.com/creatorpay/ledger/pkg/money"
	"github.com/creatorpay/ledger/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
//
// Why is GetRepository part of UoW?
// - Ensures all repositories use the same DB session/transaction for true atomicity.
// - Keeps engine code focused on ledger semantics.
// - Centralizes repository wiring and registry for maintainability.
// - Prevents accidental use of the wrong DB session (which would break transactionality).
type UoW struct {
	db           *gorm.DB
	tx           *gorm.DB
	currency     money.Code
	repoRegistry map[reflect.Type]func(*gorm.DB) any
}

// NewUoW creates a new UoW for the given *gorm.DB. New wallets and stats are
// denominated in the given platform currency.
func NewUoW(db *gorm.DB, currency money.Code) *UoW {
	return &UoW{
		db:       db,
		currency: currency,
		repoRegistry: map[reflect.Type]func(*gorm.DB) any{
			reflect.TypeOf((*repository.WalletRepository)(nil)).Elem():         func(db *gorm.DB) any { return wallet.New(db, currency) },
			reflect.TypeOf((*repository.TransactionRepository)(nil)).Elem():    func(db *gorm.DB) any { return transaction.New(db) },
			reflect.TypeOf((*repository.TipRepository)(nil)).Elem():            func(db *gorm.DB) any { return tip.New(db, currency) },
			reflect.TypeOf((*repository.PayoutRepository)(nil)).Elem():         func(db *gorm.DB) any { return payout.New(db) },
			reflect.TypeOf((*repository.ConnectAccountRepository)(nil)).Elem(): func(db *gorm.DB) any { return connectaccount.New(db) },
		},
	}
}

// Do runs the given function in a transaction boundary, providing a UoW with
// repository access bound to that transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnUow := &UoW{db: u.db, tx: tx, currency: u.currency, repoRegistry: u.repoRegistry}
		return fn(txnUow)
	})
}

// GetRepository provides generic, type-safe access to repositories using the
// transaction session when inside Do, or the base session otherwise.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repoRegistry[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(u.session()), nil
}

// WalletRepository implements repository.UnitOfWork.
func (u *UoW) WalletRepository() (repository.WalletRepository, error) {
	return wallet.New(u.session(), u.currency), nil
}

// TransactionRepository implements repository.UnitOfWork.
func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return transaction.New(u.session()), nil
}

// TipRepository implements repository.UnitOfWork.
func (u *UoW) TipRepository() (repository.TipRepository, error) {
	return tip.New(u.session(), u.currency), nil
}

// PayoutRepository implements repository.UnitOfWork.
func (u *UoW) PayoutRepository() (repository.PayoutRepository, error) {
	return payout.New(u.session()), nil
}

// ConnectAccountRepository implements repository.UnitOfWork.
func (u *UoW) ConnectAccountRepository() (repository.ConnectAccountRepository, error) {
	return connectaccount.New(u.session()), nil
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// Migrate creates or updates the ledger schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&wallet.Wallet{},
		&transaction.Transaction{},
		&tip.Tip{},
		&payout.Payout{},
		&connectaccount.ConnectAccount{},
	)
}
