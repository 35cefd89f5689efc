package connectaccount

import (
	"context"
	"errors"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	repo "github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// New creates a connect-account repository using the provided *gorm.DB.
func New(db *gorm.DB) repo.ConnectAccountRepository {
	return &repository{db: db}
}

// Get implements repo.ConnectAccountRepository.
func (r *repository) Get(ctx context.Context, userID uuid.UUID) (*ledger.ConnectAccount, error) {
	var row ConnectAccount
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&row), nil
}

// GetByProviderID implements repo.ConnectAccountRepository.
func (r *repository) GetByProviderID(ctx context.Context, providerAccountID string) (*ledger.ConnectAccount, error) {
	var row ConnectAccount
	if err := r.db.WithContext(ctx).First(&row, "provider_account_id = ?", providerAccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&row), nil
}

// Upsert implements repo.ConnectAccountRepository.
func (r *repository) Upsert(ctx context.Context, upsert dto.ConnectAccountUpsert) error {
	row := ConnectAccount{
		UserID:             upsert.UserID,
		ProviderAccountID:  upsert.ProviderAccountID,
		OnboardingComplete: upsert.OnboardingComplete,
		Status:             string(upsert.Status),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider_account_id", "onboarding_complete", "status", "updated_at"}),
	}).Create(&row).Error
}

func mapModelToDomain(row *ConnectAccount) *ledger.ConnectAccount {
	return &ledger.ConnectAccount{
		UserID:             row.UserID,
		ProviderAccountID:  row.ProviderAccountID,
		OnboardingComplete: row.OnboardingComplete,
		Status:             ledger.ConnectAccountStatus(row.Status),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
