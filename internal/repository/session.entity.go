package repository

import (
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
)

type TillSessionEntity struct {
	ID             int64            `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	BranchID       string           `db:"branch_id"       gorm:"column:branch_id;not null;index"`
	OpenedBy       string           `db:"opened_by"       gorm:"column:opened_by;not null"`
	OpeningAmount  decimal.Decimal  `db:"opening_amount"  gorm:"column:opening_amount;type:decimal(12,2);not null"`
	OpeningTime    time.Time        `db:"opening_time"    gorm:"column:opening_time;not null"`
	Status         string           `db:"status"          gorm:"column:status;not null;default:OPEN;index"`
	ClosedBy       string           `db:"closed_by"       gorm:"column:closed_by"`
	ClosingAmount  *decimal.Decimal `db:"closing_amount"  gorm:"column:closing_amount;type:decimal(12,2)"`
	ClosingTime    *time.Time       `db:"closing_time"    gorm:"column:closing_time"`
	ExpectedAmount *decimal.Decimal `db:"expected_amount" gorm:"column:expected_amount;type:decimal(12,2)"`
	VarianceAmount *decimal.Decimal `db:"variance_amount" gorm:"column:variance_amount;type:decimal(12,2)"`
	Notes          string           `db:"notes"           gorm:"column:notes"`
}

func (TillSessionEntity) TableName() string {
	return "till_sessions"
}

func toSessionEntity(m *model.TillSession) *TillSessionEntity {
	if m == nil {
		return nil
	}
	return &TillSessionEntity{
		ID:             m.ID,
		BranchID:       m.BranchID,
		OpenedBy:       m.OpenedBy,
		OpeningAmount:  m.OpeningAmount,
		OpeningTime:    m.OpeningTime,
		Status:         string(m.Status),
		ClosedBy:       m.ClosedBy,
		ClosingAmount:  m.ClosingAmount,
		ClosingTime:    m.ClosingTime,
		ExpectedAmount: m.ExpectedAmount,
		VarianceAmount: m.VarianceAmount,
		Notes:          m.Notes,
	}
}

func toSessionModel(e *TillSessionEntity) *model.TillSession {
	if e == nil {
		return nil
	}
	return &model.TillSession{
		ID:             e.ID,
		BranchID:       e.BranchID,
		OpenedBy:       e.OpenedBy,
		OpeningAmount:  e.OpeningAmount,
		OpeningTime:    e.OpeningTime,
		Status:         model.SessionStatus(e.Status),
		ClosedBy:       e.ClosedBy,
		ClosingAmount:  e.ClosingAmount,
		ClosingTime:    e.ClosingTime,
		ExpectedAmount: e.ExpectedAmount,
		VarianceAmount: e.VarianceAmount,
		Notes:          e.Notes,
	}
}

func toSessionModels(entities []*TillSessionEntity) []*model.TillSession {
	if entities == nil {
		return nil
	}
	models := make([]*model.TillSession, len(entities))
	for i, e := range entities {
		models[i] = toSessionModel(e)
	}
	return models
}
