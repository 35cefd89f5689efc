package payout

import (
	"context"
	"errors"
	"time"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	repo "github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var openStatuses = []string{
	string(ledger.PayoutPending),
	string(ledger.PayoutApproved),
	string(ledger.PayoutProcessing),
}

type repository struct {
	db *gorm.DB
}

// New creates a payout repository using the provided *gorm.DB.
func New(db *gorm.DB) repo.PayoutRepository {
	return &repository{db: db}
}

// Create implements repo.PayoutRepository.
func (r *repository) Create(ctx context.Context, create dto.PayoutCreate) error {
	row := Payout{
		ID:              create.ID,
		UserID:          create.UserID,
		RequestedAmount: create.RequestedAmount,
		Currency:        create.Currency,
		Status:          string(create.Status),
		Note:            create.Note,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// Get implements repo.PayoutRepository.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*ledger.Payout, error) {
	var row Payout
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&row)
}

// Update implements repo.PayoutRepository. The expected-status guard is part
// of the UPDATE statement; a replayed or out-of-order transition surfaces as
// ErrInvalidState.
func (r *repository) Update(ctx context.Context, id uuid.UUID, update dto.PayoutUpdate) error {
	updates := map[string]any{"status": string(update.Status)}
	if update.ApproverID != nil {
		updates["approver_id"] = *update.ApproverID
	}
	if update.RejectionReason != nil {
		updates["rejection_reason"] = *update.RejectionReason
	}
	if update.ProviderPayoutRef != nil {
		updates["provider_payout_ref"] = *update.ProviderPayoutRef
	}
	if update.ResolvedAt != nil {
		updates["resolved_at"] = *update.ResolvedAt
	}

	res := r.db.WithContext(ctx).Model(&Payout{}).
		Where("id = ? AND status = ?", id, string(update.ExpectStatus)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Payout{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ledger.ErrNotFound
		}
		return ledger.ErrInvalidState
	}
	return nil
}

// HasOpen implements repo.PayoutRepository.
func (r *repository) HasOpen(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Payout{}).
		Where("user_id = ? AND status IN ?", userID, openStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByStatusOlderThan implements repo.PayoutRepository.
func (r *repository) ListByStatusOlderThan(
	ctx context.Context,
	status ledger.PayoutStatus,
	threshold time.Time,
) ([]*ledger.Payout, error) {
	var rows []Payout
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(status), threshold).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]*ledger.Payout, 0, len(rows))
	for i := range rows {
		p, err := mapModelToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// Stats implements repo.PayoutRepository.
func (r *repository) Stats(ctx context.Context, userID uuid.UUID) (*ledger.PayoutStats, error) {
	var rows []struct {
		Status string
		Count  int64
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&Payout{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(requested_amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &ledger.PayoutStats{CompletedTotal: money.Zero(money.DefaultCode)}
	for _, row := range rows {
		stats.RequestedCount += row.Count
		switch ledger.PayoutStatus(row.Status) {
		case ledger.PayoutCompleted:
			stats.CompletedCount = row.Count
			total, err := money.New(row.Total, money.DefaultCode)
			if err != nil {
				return nil, err
			}
			stats.CompletedTotal = total
		case ledger.PayoutFailed:
			stats.FailedCount = row.Count
		case ledger.PayoutRejected:
			stats.RejectedCount = row.Count
		}
	}
	return stats, nil
}

// mapModelToDomain maps a GORM model to the domain payout.
func mapModelToDomain(row *Payout) (*ledger.Payout, error) {
	amount, err := money.New(row.RequestedAmount, money.Code(row.Currency))
	if err != nil {
		return nil, err
	}
	return &ledger.Payout{
		ID:                row.ID,
		UserID:            row.UserID,
		RequestedAmount:   amount,
		Status:            ledger.PayoutStatus(row.Status),
		Note:              row.Note,
		ApproverID:        row.ApproverID,
		RejectionReason:   row.RejectionReason,
		ProviderPayoutRef: row.ProviderPayoutRef,
		CreatedAt:         row.CreatedAt,
		ResolvedAt:        row.ResolvedAt,
	}, nil
}
