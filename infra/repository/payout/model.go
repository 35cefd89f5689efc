package payout

import (
	"time"

	"github.com/google/uuid"
)

// Payout represents a payout record in the database.
type Payout struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	RequestedAmount   int64      `gorm:"not null"`
	Currency          string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Status            string     `gorm:"type:varchar(16);not null;index"`
	Note              string     `gorm:"type:varchar(500)"`
	ApproverID        *uuid.UUID `gorm:"type:uuid"`
	RejectionReason   string     `gorm:"type:varchar(500)"`
	ProviderPayoutRef string     `gorm:"type:varchar(128);index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

// TableName specifies the table name for the Payout model.
func (Payout) TableName() string {
	return "payouts"
}
