package transaction

import (
	"context"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	repo "github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New creates an append-only transaction log repository using the provided *gorm.DB.
func New(db *gorm.DB) repo.TransactionRepository {
	return &repository{db: db}
}

// Append implements repo.TransactionRepository.
func (r *repository) Append(ctx context.Context, create dto.TransactionCreate) (*ledger.Transaction, error) {
	tx := Transaction{
		ID:           create.ID,
		WalletID:     create.WalletID,
		Type:         string(create.Type),
		Amount:       create.Amount,
		Currency:     create.Currency,
		ReferenceID:  create.ReferenceID,
		BalanceAfter: create.BalanceAfter,
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return nil, err
	}
	return mapModelToDomain(&tx)
}

// ListForWallet implements repo.TransactionRepository.
func (r *repository) ListForWallet(
	ctx context.Context,
	walletID uuid.UUID,
	filter dto.TransactionFilter,
	page dto.Page,
) ([]*ledger.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&Transaction{}).Where("wallet_id = ?", walletID)
	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	if filter.OldestFirst {
		q = q.Order("created_at ASC, id ASC")
	} else {
		q = q.Order("created_at DESC, id DESC")
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}

	var rows []Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*ledger.Transaction, 0, len(rows))
	for i := range rows {
		entry, err := mapModelToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

// mapModelToDomain maps a GORM model to the domain transaction.
func mapModelToDomain(tx *Transaction) (*ledger.Transaction, error) {
	code := money.Code(tx.Currency)
	amount, err := money.New(tx.Amount, code)
	if err != nil {
		return nil, err
	}
	balanceAfter, err := money.New(tx.BalanceAfter, code)
	if err != nil {
		return nil, err
	}
	return &ledger.Transaction{
		ID:           tx.ID,
		WalletID:     tx.WalletID,
		Type:         ledger.TransactionType(tx.Type),
		Amount:       amount,
		ReferenceID:  tx.ReferenceID,
		BalanceAfter: balanceAfter,
		CreatedAt:    tx.CreatedAt,
	}, nil
}
