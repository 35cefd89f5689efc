package connectaccount

import (
	"time"

	"github.com/google/uuid"
)

// ConnectAccount binds a user to their payout-provider account.
type ConnectAccount struct {
	UserID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderAccountID  string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	OnboardingComplete bool      `gorm:"not null;default:false"`
	Status             string    `gorm:"type:varchar(16);not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName specifies the table name for the ConnectAccount model.
func (ConnectAccount) TableName() string {
	return "connect_accounts"
}
