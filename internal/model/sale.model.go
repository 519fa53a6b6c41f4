package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sales and refunds are owned by the ordering system; this service only
// reads them to reconcile the drawer. Only completed rows count.
const PaymentStatusCompleted = "completed"

const PaymentMethodCash = "cash"

type Sale struct {
	ID            int64           `json:"id"`
	BranchID      string          `json:"branch_id"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Refund struct {
	ID            int64           `json:"id"`
	BranchID      string          `json:"branch_id"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MethodTotal is one row of a payment-method breakdown.
type MethodTotal struct {
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
}
