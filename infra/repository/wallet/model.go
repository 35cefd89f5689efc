package wallet

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet represents a wallet record in the database. Soft-deleted on account
// deletion; the transaction log survives.
type Wallet struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Available         int64     `gorm:"not null;default:0"`
	Pending           int64     `gorm:"not null;default:0"`
	LifetimeEarned    int64     `gorm:"not null;default:0"`
	LifetimeWithdrawn int64     `gorm:"not null;default:0"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'USD'"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for the Wallet model.
func (Wallet) TableName() string {
	return "wallets"
}
