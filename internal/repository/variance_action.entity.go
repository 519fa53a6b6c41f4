package repository

import (
	"time"

	"github.com/retailcore/till-service/internal/model"
)

type VarianceActionEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	VarianceID int64     `db:"variance_id" gorm:"column:variance_id;not null;index"`
	ActionType string    `db:"action_type" gorm:"column:action_type;not null"`
	ActionBy   string    `db:"action_by"   gorm:"column:action_by;not null"`
	Notes      string    `db:"notes"       gorm:"column:notes"`
	OldValue   string    `db:"old_value"   gorm:"column:old_value"`
	NewValue   string    `db:"new_value"   gorm:"column:new_value"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;not null"`
}

func (VarianceActionEntity) TableName() string {
	return "variance_actions"
}

func toActionEntity(m *model.VarianceAction) *VarianceActionEntity {
	if m == nil {
		return nil
	}
	return &VarianceActionEntity{
		ID:         m.ID,
		VarianceID: m.VarianceID,
		ActionType: string(m.ActionType),
		ActionBy:   m.ActionBy,
		Notes:      m.Notes,
		OldValue:   m.OldValue,
		NewValue:   m.NewValue,
		CreatedAt:  m.CreatedAt,
	}
}

func toActionModel(e *VarianceActionEntity) *model.VarianceAction {
	if e == nil {
		return nil
	}
	return &model.VarianceAction{
		ID:         e.ID,
		VarianceID: e.VarianceID,
		ActionType: model.ActionType(e.ActionType),
		ActionBy:   e.ActionBy,
		Notes:      e.Notes,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		CreatedAt:  e.CreatedAt,
	}
}

func toActionModels(entities []*VarianceActionEntity) []*model.VarianceAction {
	if entities == nil {
		return nil
	}
	models := make([]*model.VarianceAction, len(entities))
	for i, e := range entities {
		models[i] = toActionModel(e)
	}
	return models
}
