package tip

import (
	"context"
	"errors"

	"github.com/creatorpay/ledger/pkg/domain/ledger"
	"github.com/creatorpay/ledger/pkg/dto"
	"github.com/creatorpay/ledger/pkg/money"
	repo "github.com/creatorpay/ledger/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db       *gorm.DB
	currency money.Code
}

// New creates a tip repository using the provided *gorm.DB.
func New(db *gorm.DB, currency money.Code) repo.TipRepository {
	return &repository{db: db, currency: currency}
}

// Create implements repo.TipRepository.
func (r *repository) Create(ctx context.Context, create dto.TipCreate) error {
	row := Tip{
		ID:          create.ID,
		SenderID:    create.SenderID,
		RecipientID: create.RecipientID,
		PostID:      create.PostID,
		GrossAmount: create.GrossAmount,
		FeeAmount:   create.FeeAmount,
		NetAmount:   create.NetAmount,
		Currency:    create.Currency,
		Message:     create.Message,
		IsAnonymous: create.IsAnonymous,
		Status:      string(create.Status),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// Get implements repo.TipRepository.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*ledger.Tip, error) {
	var row Tip
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return mapModelToDomain(&row)
}

// UpdateStatus implements repo.TipRepository. The from-status guard is part
// of the UPDATE, so a lost race surfaces as ErrInvalidState instead of a
// silent double transition.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ledger.TipStatus) error {
	res := r.db.WithContext(ctx).Model(&Tip{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Tip{}).
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

// Stats implements repo.TipRepository.
func (r *repository) Stats(ctx context.Context, userID uuid.UUID) (*ledger.TipStats, error) {
	var sent, received struct {
		Count int64
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&Tip{}).
		Select("COUNT(*) AS count, COALESCE(SUM(gross_amount), 0) AS total").
		Where("sender_id = ? AND status = ?", userID, string(ledger.TipCompleted)).
		Scan(&sent).Error
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Model(&Tip{}).
		Select("COUNT(*) AS count, COALESCE(SUM(net_amount), 0) AS total").
		Where("recipient_id = ? AND status = ?", userID, string(ledger.TipCompleted)).
		Scan(&received).Error
	if err != nil {
		return nil, err
	}

	sentTotal, err := money.New(sent.Total, r.currency)
	if err != nil {
		return nil, err
	}
	receivedTotal, err := money.New(received.Total, r.currency)
	if err != nil {
		return nil, err
	}
	return &ledger.TipStats{
		SentCount:     sent.Count,
		SentTotal:     sentTotal,
		ReceivedCount: received.Count,
		ReceivedTotal: receivedTotal,
	}, nil
}

// mapModelToDomain maps a GORM model to the domain tip.
func mapModelToDomain(row *Tip) (*ledger.Tip, error) {
	code := money.Code(row.Currency)
	gross, err := money.New(row.GrossAmount, code)
	if err != nil {
		return nil, err
	}
	fee, err := money.New(row.FeeAmount, code)
	if err != nil {
		return nil, err
	}
	net, err := money.New(row.NetAmount, code)
	if err != nil {
		return nil, err
	}
	return &ledger.Tip{
		ID:          row.ID,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		PostID:      row.PostID,
		GrossAmount: gross,
		FeeAmount:   fee,
		NetAmount:   net,
		Message:     row.Message,
		IsAnonymous: row.IsAnonymous,
		Status:      ledger.TipStatus(row.Status),
		CreatedAt:   row.CreatedAt,
	}, nil
}
