package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle state of a till session. A closed session
// never reopens; a new one must be opened instead.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "OPEN"
	SessionStatusClosed SessionStatus = "CLOSED"
)

// TillSession is one physical drawer period for a branch. Expected and
// variance amounts are filled in at close; the sales/refund breakdown is
// always derived from the aggregator, never stored here.
type TillSession struct {
	ID             int64            `json:"id"`
	BranchID       string           `json:"branch_id"`
	OpenedBy       string           `json:"opened_by"`
	OpeningAmount  decimal.Decimal  `json:"opening_amount"`
	OpeningTime    time.Time        `json:"opening_time"`
	Status         SessionStatus    `json:"status"`
	ClosedBy       string           `json:"closed_by,omitempty"`
	ClosingAmount  *decimal.Decimal `json:"closing_amount,omitempty"`
	ClosingTime    *time.Time       `json:"closing_time,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	VarianceAmount *decimal.Decimal `json:"variance_amount,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// ExpenseEntry is an ad-hoc cash expense declared at close time.
type ExpenseEntry struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type OpenSessionRequest struct {
	BranchID      string
	OpeningAmount decimal.Decimal
	Notes         string
}

func (r OpenSessionRequest) Validate() error {
	if r.BranchID == "" {
		return errors.New("branch_id is required")
	}
	if r.OpeningAmount.IsNegative() {
		return errors.New("opening_amount must not be negative")
	}
	return nil
}

type CloseSessionRequest struct {
	BranchID      string
	ClosingAmount decimal.Decimal
	Expenses      []ExpenseEntry
	Notes         string
}

func (r CloseSessionRequest) Validate() error {
	if r.BranchID == "" {
		return errors.New("branch_id is required")
	}
	if r.ClosingAmount.IsNegative() {
		return errors.New("closing_amount must not be negative")
	}
	for _, e := range r.Expenses {
		if e.Amount.IsNegative() {
			return errors.New("expense amounts must not be negative")
		}
	}
	return nil
}

type SessionFilter struct {
	BranchID string
	Status   SessionStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	Desc     bool
}

// CloseResult is what a close returns to the caller: the closed session
// plus the reconciliation figures computed inside the same transaction.
type CloseResult struct {
	Session  *TillSession    `json:"session"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Variance decimal.Decimal `json:"variance"`
	Case     *CashVariance   `json:"variance_case,omitempty"`
}

// TillSummary is the live view of a branch's open drawer. It is recomputed
// on every call; nothing here may be served from a long-lived cache.
type TillSummary struct {
	BranchID      string                     `json:"branch_id"`
	SessionID     int64                      `json:"session_id"`
	OpeningAmount decimal.Decimal            `json:"opening"`
	SalesTotal    decimal.Decimal            `json:"sales"`
	SalesByMethod map[string]decimal.Decimal `json:"sales_by_method"`
	RefundsTotal  decimal.Decimal            `json:"refunds"`
	DropsTotal    decimal.Decimal            `json:"drops"`
	CurrentAmount decimal.Decimal            `json:"current"`
	AsOf          time.Time                  `json:"as_of"`
}
