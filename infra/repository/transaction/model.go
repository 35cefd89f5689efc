package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Transaction represents one persisted ledger entry. Rows are insert-only:
// there is no update or delete path in this package.
type Transaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	WalletID     uuid.UUID `gorm:"type:uuid;not null;index:idx_transactions_wallet_created"`
	Type         string    `gorm:"type:varchar(32);not null;index"`
	Amount       int64     `gorm:"not null"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'USD'"`
	ReferenceID  uuid.UUID `gorm:"type:uuid;index"`
	BalanceAfter int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"index:idx_transactions_wallet_created"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}
