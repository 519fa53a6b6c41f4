package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VarianceAlert is the event published when a variance case exceeds the
// branch threshold. EventID makes delivery idempotent across retries.
type VarianceAlert struct {
	EventID    string          `json:"event_id"`
	VarianceID int64           `json:"variance_id"`
	SessionID  int64           `json:"session_id"`
	BranchID   string          `json:"branch_id"`
	Type       VarianceType    `json:"variance_type"`
	Amount     decimal.Decimal `json:"amount"`
	Threshold  decimal.Decimal `json:"threshold"`
	OccurredAt time.Time       `json:"occurred_at"`
}
