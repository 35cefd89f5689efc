package tipping

import (
	"context"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/google/uuid"
)

// GetBalance returns the user's wallet, creating it lazily on first access.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*ledger.Wallet, error) {
	wallets, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	return wallets.GetOrCreate(ctx, userID)
}

// GetTransactions returns the user's transaction history, newest-first by
// default, filtered by type and date range.
func (s *Service) GetTransactions(
	ctx context.Context,
	userID uuid.UUID,
	filter dto.TransactionFilter,
	page dto.Page,
) ([]*ledger.Transaction, error) {
	wallets, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	wallet, err := wallets.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txns.ListForWallet(ctx, wallet.ID, filter, page)
}

// Stats returns the user's tipping aggregates.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*ledger.TipStats, error) {
	tips, err := s.uow.TipRepository()
	if err != nil {
		return nil, err
	}
	return tips.Stats(ctx, userID)
}
