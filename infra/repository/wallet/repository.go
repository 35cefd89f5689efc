package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/money"
	repo "github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db       *gorm.DB
	currency money.Code
}

// New creates a wallet repository using the provided *gorm.DB. New wallets
// are created in the given platform currency.
func New(db *gorm.DB, currency money.Code) repo.WalletRepository {
	return &repository{db: db, currency: currency}
}

// GetOrCreate implements repo.WalletRepository.
func (r *repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*ledger.Wallet, error) {
	var w Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return mapModelToDomain(&w)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = Wallet{
		ID:       uuid.New(),
		UserID:   userID,
		Currency: r.currency.String(),
	}
	if err := r.db.WithContext(ctx).Create(&w).Error; err != nil {
		return nil, err
	}
	return mapModelToDomain(&w)
}

// Get implements repo.WalletRepository.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*ledger.Wallet, error) {
	var w Wallet
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&w)
}

// GetByUser implements repo.WalletRepository.
func (r *repository) GetByUser(ctx context.Context, userID uuid.UUID) (*ledger.Wallet, error) {
	var w Wallet
	if err := r.db.WithContext(ctx).First(&w, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&w)
}

// ApplyDelta implements repo.WalletRepository. The non-negativity check is
// part of the UPDATE itself, so two concurrent debits against the same stale
// balance cannot both pass: the second statement re-evaluates the guard after
// the first one's row lock is released.
func (r *repository) ApplyDelta(
	ctx context.Context,
	walletID uuid.UUID,
	availableDelta, pendingDelta int64,
) (*ledger.Wallet, error) {
	res := r.db.WithContext(ctx).Model(&Wallet{}).
		Where("id = ? AND available + ? >= 0 AND pending + ? >= 0",
			walletID, availableDelta, pendingDelta).
		Updates(map[string]any{
			"available": gorm.Expr("available + ?", availableDelta),
			"pending":   gorm.Expr("pending + ?", pendingDelta),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("apply wallet delta: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing wallet from a guard rejection.
		var count int64
		if err := r.db.WithContext(ctx).Model(&Wallet{}).
			Where("id = ?", walletID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ledger.ErrNotFound
		}
		return nil, ledger.ErrInsufficientFunds
	}
	return r.Get(ctx, walletID)
}

// AddLifetime implements repo.WalletRepository.
func (r *repository) AddLifetime(
	ctx context.Context,
	walletID uuid.UUID,
	earnedDelta, withdrawnDelta int64,
) error {
	res := r.db.WithContext(ctx).Model(&Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"lifetime_earned":    gorm.Expr("lifetime_earned + ?", earnedDelta),
			"lifetime_withdrawn": gorm.Expr("lifetime_withdrawn + ?", withdrawnDelta),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Archive implements repo.WalletRepository.
func (r *repository) Archive(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Wallet{}).Error
}

// ListIDs implements repo.WalletRepository.
func (r *repository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&Wallet{}).
		Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// mapModelToDomain maps a GORM model to the domain wallet.
func mapModelToDomain(w *Wallet) (*ledger.Wallet, error) {
	code := money.Code(w.Currency)
	available, err := money.New(w.Available, code)
	if err != nil {
		return nil, err
	}
	pending, err := money.New(w.Pending, code)
	if err != nil {
		return nil, err
	}
	earned, err := money.New(w.LifetimeEarned, code)
	if err != nil {
		return nil, err
	}
	withdrawn, err := money.New(w.LifetimeWithdrawn, code)
	if err != nil {
		return nil, err
	}
	return &ledger.Wallet{
		ID:                w.ID,
		UserID:            w.UserID,
		Available:         available,
		Pending:           pending,
		LifetimeEarned:    earned,
		LifetimeWithdrawn: withdrawn,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}, nil
}
