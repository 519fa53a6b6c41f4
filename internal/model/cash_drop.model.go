package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CashDrop is a mid-session removal of cash from the drawer to a safe.
// Drops only ever reduce the drawer; returning money means opening the
// next session with a higher float.
type CashDrop struct {
	ID               int64           `json:"id"`
	SessionID        int64           `json:"session_id"`
	BranchID         string          `json:"branch_id"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           string          `json:"reason"`
	PerformedBy      string          `json:"performed_by"`
	TillAmountBefore decimal.Decimal `json:"till_amount_before"`
	TillAmountAfter  decimal.Decimal `json:"till_amount_after"`
	CreatedAt        time.Time       `json:"created_at"`
}

type CashDropRequest struct {
	BranchID string
	Amount   decimal.Decimal
	Reason   string
}

func (r CashDropRequest) Validate() error {
	if r.BranchID == "" {
		return errors.New("branch_id is required")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if r.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}
