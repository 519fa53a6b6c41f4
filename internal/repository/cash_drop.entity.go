package repository

import (
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
)

type CashDropEntity struct {
	ID               int64           `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	SessionID        int64           `db:"session_id"         gorm:"column:session_id;not null;index"`
	BranchID         string          `db:"branch_id"          gorm:"column:branch_id;not null;index"`
	Amount           decimal.Decimal `db:"amount"             gorm:"column:amount;type:decimal(12,2);not null"`
	Reason           string          `db:"reason"             gorm:"column:reason;not null"`
	PerformedBy      string          `db:"performed_by"       gorm:"column:performed_by;not null"`
	TillAmountBefore decimal.Decimal `db:"till_amount_before" gorm:"column:till_amount_before;type:decimal(12,2);not null"`
	TillAmountAfter  decimal.Decimal `db:"till_amount_after"  gorm:"column:till_amount_after;type:decimal(12,2);not null"`
	CreatedAt        time.Time       `db:"created_at"         gorm:"column:created_at;not null"`
}

func (CashDropEntity) TableName() string {
	return "cash_drops"
}

func toCashDropEntity(m *model.CashDrop) *CashDropEntity {
	if m == nil {
		return nil
	}
	return &CashDropEntity{
		ID:               m.ID,
		SessionID:        m.SessionID,
		BranchID:         m.BranchID,
		Amount:           m.Amount,
		Reason:           m.Reason,
		PerformedBy:      m.PerformedBy,
		TillAmountBefore: m.TillAmountBefore,
		TillAmountAfter:  m.TillAmountAfter,
		CreatedAt:        m.CreatedAt,
	}
}

func toCashDropModel(e *CashDropEntity) *model.CashDrop {
	if e == nil {
		return nil
	}
	return &model.CashDrop{
		ID:               e.ID,
		SessionID:        e.SessionID,
		BranchID:         e.BranchID,
		Amount:           e.Amount,
		Reason:           e.Reason,
		PerformedBy:      e.PerformedBy,
		TillAmountBefore: e.TillAmountBefore,
		TillAmountAfter:  e.TillAmountAfter,
		CreatedAt:        e.CreatedAt,
	}
}

func toCashDropModels(entities []*CashDropEntity) []*model.CashDrop {
	if entities == nil {
		return nil
	}
	models := make([]*model.CashDrop, len(entities))
	for i, e := range entities {
		models[i] = toCashDropModel(e)
	}
	return models
}
