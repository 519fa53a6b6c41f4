package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sales and refunds are written by the ordering system. These entities
// exist only for reads; nothing in this service inserts into them outside
// of test fixtures.

type SaleEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	BranchID      string          `db:"branch_id"      gorm:"column:branch_id;not null;index"`
	PaymentMethod string          `db:"payment_method" gorm:"column:payment_method;not null"`
	PaymentStatus string          `db:"payment_status" gorm:"column:payment_status;not null"`
	Amount        decimal.Decimal `db:"amount"         gorm:"column:amount;type:decimal(12,2);not null"`
	CreatedAt     time.Time       `db:"created_at"     gorm:"column:created_at;not null"`
}

func (SaleEntity) TableName() string {
	return "sales"
}

type RefundEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	BranchID      string          `db:"branch_id"      gorm:"column:branch_id;not null;index"`
	PaymentMethod string          `db:"payment_method" gorm:"column:payment_method;not null"`
	PaymentStatus string          `db:"payment_status" gorm:"column:payment_status;not null"`
	Amount        decimal.Decimal `db:"amount"         gorm:"column:amount;type:decimal(12,2);not null"`
	CreatedAt     time.Time       `db:"created_at"     gorm:"column:created_at;not null"`
}

func (RefundEntity) TableName() string {
	return "refunds"
}
