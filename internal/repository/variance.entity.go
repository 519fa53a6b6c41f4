package repository

import (
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
)

type CashVarianceEntity struct {
	ID                 int64           `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	SessionID          int64           `db:"session_id"          gorm:"column:session_id;not null;index"`
	BranchID           string          `db:"branch_id"           gorm:"column:branch_id;not null;index"`
	VarianceType       string          `db:"variance_type"       gorm:"column:variance_type;not null"`
	Amount             decimal.Decimal `db:"amount"              gorm:"column:amount;type:decimal(12,2);not null"`
	Category           string          `db:"category"            gorm:"column:category;not null;default:unknown"`
	Description        string          `db:"description"         gorm:"column:description"`
	ReportedBy         string          `db:"reported_by"         gorm:"column:reported_by;not null"`
	InvestigatedBy     string          `db:"investigated_by"     gorm:"column:investigated_by"`
	InvestigationNotes string          `db:"investigation_notes" gorm:"column:investigation_notes"`
	ResolutionStatus   string          `db:"resolution_status"   gorm:"column:resolution_status;not null;default:PENDING;index"`
	ManagerApproval    bool            `db:"manager_approval"    gorm:"column:manager_approval;not null;default:false"`
	ManagerID          string          `db:"manager_id"          gorm:"column:manager_id"`
	ManagerNotes       string          `db:"manager_notes"       gorm:"column:manager_notes"`
	CreatedAt          time.Time       `db:"created_at"          gorm:"column:created_at;not null"`
	UpdatedAt          time.Time       `db:"updated_at"          gorm:"column:updated_at;not null"`
	ResolvedAt         *time.Time      `db:"resolved_at"         gorm:"column:resolved_at"`
}

func (CashVarianceEntity) TableName() string {
	return "cash_variances"
}

func toVarianceEntity(m *model.CashVariance) *CashVarianceEntity {
	if m == nil {
		return nil
	}
	return &CashVarianceEntity{
		ID:                 m.ID,
		SessionID:          m.SessionID,
		BranchID:           m.BranchID,
		VarianceType:       string(m.VarianceType),
		Amount:             m.Amount,
		Category:           string(m.Category),
		Description:        m.Description,
		ReportedBy:         m.ReportedBy,
		InvestigatedBy:     m.InvestigatedBy,
		InvestigationNotes: m.InvestigationNotes,
		ResolutionStatus:   string(m.ResolutionStatus),
		ManagerApproval:    m.ManagerApproval,
		ManagerID:          m.ManagerID,
		ManagerNotes:       m.ManagerNotes,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		ResolvedAt:         m.ResolvedAt,
	}
}

func toVarianceModel(e *CashVarianceEntity) *model.CashVariance {
	if e == nil {
		return nil
	}
	return &model.CashVariance{
		ID:                 e.ID,
		SessionID:          e.SessionID,
		BranchID:           e.BranchID,
		VarianceType:       model.VarianceType(e.VarianceType),
		Amount:             e.Amount,
		Category:           model.VarianceCategory(e.Category),
		Description:        e.Description,
		ReportedBy:         e.ReportedBy,
		InvestigatedBy:     e.InvestigatedBy,
		InvestigationNotes: e.InvestigationNotes,
		ResolutionStatus:   model.ResolutionStatus(e.ResolutionStatus),
		ManagerApproval:    e.ManagerApproval,
		ManagerID:          e.ManagerID,
		ManagerNotes:       e.ManagerNotes,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
		ResolvedAt:         e.ResolvedAt,
	}
}

func toVarianceModels(entities []*CashVarianceEntity) []*model.CashVariance {
	if entities == nil {
		return nil
	}
	models := make([]*model.CashVariance, len(entities))
	for i, e := range entities {
		models[i] = toVarianceModel(e)
	}
	return models
}
