package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type VarianceType string

const (
	VarianceShortage VarianceType = "SHORTAGE"
	VarianceOverage  VarianceType = "OVERAGE"
)

func (t VarianceType) Valid() bool {
	return t == VarianceShortage || t == VarianceOverage
}

// VarianceCategory classifies the suspected cause of a discrepancy.
type VarianceCategory string

const (
	CategoryCountingError       VarianceCategory = "counting_error"
	CategoryUnrecordedSale      VarianceCategory = "unrecorded_sale"
	CategoryWrongChangeGiven    VarianceCategory = "wrong_change_given"
	CategoryCashTheft           VarianceCategory = "cash_theft"
	CategoryRegisterMalfunction VarianceCategory = "register_malfunction"
	CategoryUnaccountedExpense  VarianceCategory = "unaccounted_expense"
	CategoryForeignCurrency     VarianceCategory = "foreign_currency"
	CategoryDamagedBills        VarianceCategory = "damaged_bills"
	CategoryCustomerDispute     VarianceCategory = "customer_dispute"
	CategoryUnknown             VarianceCategory = "unknown"
	CategoryOther               VarianceCategory = "other"
)

var varianceCategories = map[VarianceCategory]struct{}{
	CategoryCountingError:       {},
	CategoryUnrecordedSale:      {},
	CategoryWrongChangeGiven:    {},
	CategoryCashTheft:           {},
	CategoryRegisterMalfunction: {},
	CategoryUnaccountedExpense:  {},
	CategoryForeignCurrency:     {},
	CategoryDamagedBills:        {},
	CategoryCustomerDispute:     {},
	CategoryUnknown:             {},
	CategoryOther:               {},
}

func (c VarianceCategory) Valid() bool {
	_, ok := varianceCategories[c]
	return ok
}

type ResolutionStatus string

const (
	StatusPending         ResolutionStatus = "PENDING"
	StatusInvestigating   ResolutionStatus = "INVESTIGATING"
	StatusResolved        ResolutionStatus = "RESOLVED"
	StatusUnresolved      ResolutionStatus = "UNRESOLVED"
	StatusManagerApproved ResolutionStatus = "MANAGER_APPROVED"
)

// Terminal reports whether a case may no longer change state.
func (s ResolutionStatus) Terminal() bool {
	switch s {
	case StatusResolved, StatusUnresolved, StatusManagerApproved:
		return true
	}
	return false
}

func (s ResolutionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInvestigating, StatusResolved, StatusUnresolved, StatusManagerApproved:
		return true
	}
	return false
}

// CashVariance is one discrepancy case opened against a closed session.
// Amount is always the absolute size of the gap; the direction lives in
// VarianceType.
type CashVariance struct {
	ID                 int64            `json:"id"`
	SessionID          int64            `json:"session_id"`
	BranchID           string           `json:"branch_id"`
	VarianceType       VarianceType     `json:"variance_type"`
	Amount             decimal.Decimal  `json:"amount"`
	Category           VarianceCategory `json:"category"`
	Description        string           `json:"description,omitempty"`
	ReportedBy         string           `json:"reported_by"`
	InvestigatedBy     string           `json:"investigated_by,omitempty"`
	InvestigationNotes string           `json:"investigation_notes,omitempty"`
	ResolutionStatus   ResolutionStatus `json:"resolution_status"`
	ManagerApproval    bool             `json:"manager_approval"`
	ManagerID          string           `json:"manager_id,omitempty"`
	ManagerNotes       string           `json:"manager_notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
}

type CreateVarianceRequest struct {
	SessionID   int64
	BranchID    string
	Type        VarianceType
	Amount      decimal.Decimal
	Category    VarianceCategory
	Description string
}

func (r CreateVarianceRequest) Validate() error {
	if r.SessionID == 0 {
		return errors.New("session_id is required")
	}
	if r.BranchID == "" {
		return errors.New("branch_id is required")
	}
	if !r.Type.Valid() {
		return errors.New("variance_type must be SHORTAGE or OVERAGE")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if r.Category != "" && !r.Category.Valid() {
		return errors.New("unknown variance category")
	}
	return nil
}

// UpdateVarianceRequest is a partial update; nil fields are left alone.
type UpdateVarianceRequest struct {
	Category           *VarianceCategory
	Description        *string
	InvestigationNotes *string
}

func (r UpdateVarianceRequest) Validate() error {
	if r.Category == nil && r.Description == nil && r.InvestigationNotes == nil {
		return errors.New("no fields to update")
	}
	if r.Category != nil && !r.Category.Valid() {
		return errors.New("unknown variance category")
	}
	return nil
}

type VarianceFilter struct {
	BranchID  string
	SessionID int64
	Statuses  []ResolutionStatus
	Type      VarianceType
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// VarianceStats is an aggregate report over cases matching a filter.
type VarianceStats struct {
	TotalCases      int64                      `json:"total_cases"`
	TotalShortage   decimal.Decimal            `json:"total_shortage"`
	TotalOverage    decimal.Decimal            `json:"total_overage"`
	NetVariance     decimal.Decimal            `json:"net_variance"`
	UnresolvedCount int64                      `json:"unresolved_count"`
	ByCategory      map[VarianceCategory]int64 `json:"by_category"`
	ByStatus        map[ResolutionStatus]int64 `json:"by_status"`
}
