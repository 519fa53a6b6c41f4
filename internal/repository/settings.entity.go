package repository

import (
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
)

type TillSettingsEntity struct {
	ID                        int64           `db:"id"                           gorm:"primaryKey;autoIncrement;column:id"`
	BranchID                  string          `db:"branch_id"                    gorm:"column:branch_id;not null;unique"`
	TillCashManagementEnabled bool            `db:"till_cash_management_enabled" gorm:"column:till_cash_management_enabled;not null;default:true"`
	AutoCashDropsEnabled      bool            `db:"auto_cash_drops_enabled"      gorm:"column:auto_cash_drops_enabled;not null;default:false"`
	TillCountRemindersEnabled bool            `db:"till_count_reminders_enabled" gorm:"column:till_count_reminders_enabled;not null;default:true"`
	VarianceAlertsEnabled     bool            `db:"variance_alerts_enabled"      gorm:"column:variance_alerts_enabled;not null;default:true"`
	MaxTillAmount             decimal.Decimal `db:"max_till_amount"              gorm:"column:max_till_amount;type:decimal(12,2);not null"`
	MinTillAmount             decimal.Decimal `db:"min_till_amount"              gorm:"column:min_till_amount;type:decimal(12,2);not null"`
	VarianceThreshold         decimal.Decimal `db:"variance_threshold"           gorm:"column:variance_threshold;type:decimal(12,2);not null"`
	CreatedAt                 time.Time       `db:"created_at"                   gorm:"column:created_at;not null"`
	UpdatedAt                 time.Time       `db:"updated_at"                   gorm:"column:updated_at;not null"`
}

func (TillSettingsEntity) TableName() string {
	return "till_settings"
}

func toSettingsEntity(m *model.TillSettings) *TillSettingsEntity {
	if m == nil {
		return nil
	}
	return &TillSettingsEntity{
		ID:                        m.ID,
		BranchID:                  m.BranchID,
		TillCashManagementEnabled: m.TillCashManagementEnabled,
		AutoCashDropsEnabled:      m.AutoCashDropsEnabled,
		TillCountRemindersEnabled: m.TillCountRemindersEnabled,
		VarianceAlertsEnabled:     m.VarianceAlertsEnabled,
		MaxTillAmount:             m.MaxTillAmount,
		MinTillAmount:             m.MinTillAmount,
		VarianceThreshold:         m.VarianceThreshold,
		CreatedAt:                 m.CreatedAt,
		UpdatedAt:                 m.UpdatedAt,
	}
}

func toSettingsModel(e *TillSettingsEntity) *model.TillSettings {
	if e == nil {
		return nil
	}
	return &model.TillSettings{
		ID:                        e.ID,
		BranchID:                  e.BranchID,
		TillCashManagementEnabled: e.TillCashManagementEnabled,
		AutoCashDropsEnabled:      e.AutoCashDropsEnabled,
		TillCountRemindersEnabled: e.TillCountRemindersEnabled,
		VarianceAlertsEnabled:     e.VarianceAlertsEnabled,
		MaxTillAmount:             e.MaxTillAmount,
		MinTillAmount:             e.MinTillAmount,
		VarianceThreshold:         e.VarianceThreshold,
		CreatedAt:                 e.CreatedAt,
		UpdatedAt:                 e.UpdatedAt,
	}
}
