package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TillSettings is the per-branch cash management configuration. A branch
// that has never been configured gets DefaultTillSettings on first read.
type TillSettings struct {
	ID                        int64           `json:"id"`
	BranchID                  string          `json:"branch_id"`
	TillCashManagementEnabled bool            `json:"till_cash_management_enabled"`
	AutoCashDropsEnabled      bool            `json:"auto_cash_drops_enabled"`
	TillCountRemindersEnabled bool            `json:"till_count_reminders_enabled"`
	VarianceAlertsEnabled     bool            `json:"variance_alerts_enabled"`
	MaxTillAmount             decimal.Decimal `json:"max_till_amount"`
	MinTillAmount             decimal.Decimal `json:"min_till_amount"`
	VarianceThreshold         decimal.Decimal `json:"variance_threshold"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

func DefaultTillSettings(branchID string) *TillSettings {
	return &TillSettings{
		BranchID:                  branchID,
		TillCashManagementEnabled: true,
		AutoCashDropsEnabled:      false,
		TillCountRemindersEnabled: true,
		VarianceAlertsEnabled:     true,
		MaxTillAmount:             decimal.NewFromInt(5000),
		MinTillAmount:             decimal.NewFromInt(500),
		VarianceThreshold:         decimal.NewFromInt(10),
	}
}

// TillSettingsPatch is a partial settings update; nil fields keep their
// current value.
type TillSettingsPatch struct {
	TillCashManagementEnabled *bool
	AutoCashDropsEnabled      *bool
	TillCountRemindersEnabled *bool
	VarianceAlertsEnabled     *bool
	MaxTillAmount             *decimal.Decimal
	MinTillAmount             *decimal.Decimal
	VarianceThreshold         *decimal.Decimal
}

func (p TillSettingsPatch) Validate() error {
	if p.MaxTillAmount != nil && p.MaxTillAmount.IsNegative() {
		return errors.New("max_till_amount must not be negative")
	}
	if p.MinTillAmount != nil && p.MinTillAmount.IsNegative() {
		return errors.New("min_till_amount must not be negative")
	}
	if p.VarianceThreshold != nil && p.VarianceThreshold.IsNegative() {
		return errors.New("variance_threshold must not be negative")
	}
	return nil
}

// Apply copies non-nil patch fields onto s.
func (p TillSettingsPatch) Apply(s *TillSettings) {
	if p.TillCashManagementEnabled != nil {
		s.TillCashManagementEnabled = *p.TillCashManagementEnabled
	}
	if p.AutoCashDropsEnabled != nil {
		s.AutoCashDropsEnabled = *p.AutoCashDropsEnabled
	}
	if p.TillCountRemindersEnabled != nil {
		s.TillCountRemindersEnabled = *p.TillCountRemindersEnabled
	}
	if p.VarianceAlertsEnabled != nil {
		s.VarianceAlertsEnabled = *p.VarianceAlertsEnabled
	}
	if p.MaxTillAmount != nil {
		s.MaxTillAmount = *p.MaxTillAmount
	}
	if p.MinTillAmount != nil {
		s.MinTillAmount = *p.MinTillAmount
	}
	if p.VarianceThreshold != nil {
		s.VarianceThreshold = *p.VarianceThreshold
	}
}
