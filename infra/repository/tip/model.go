package tip

import (
	"time"

	"github.com/google/uuid"
)

// Tip represents a tip record in the database.
type Tip struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SenderID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID  `gorm:"type:uuid;not null;index"`
	PostID      *uuid.UUID `gorm:"type:uuid;index"`
	GrossAmount int64      `gorm:"not null"`
	FeeAmount   int64      `gorm:"not null"`
	NetAmount   int64      `gorm:"not null"`
	Currency    string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Message     string     `gorm:"type:varchar(500)"`
	IsAnonymous bool       `gorm:"not null;default:false"`
	Status      string     `gorm:"type:varchar(16);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name for the Tip model.
func (Tip) TableName() string {
	return "tips"
}
