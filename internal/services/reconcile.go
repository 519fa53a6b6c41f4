package services

import (
	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
)

// Reconciliation is the drawer math for one session. All arithmetic is
// decimal; floats never enter here.
type Reconciliation struct {
	Opening     decimal.Decimal
	CashSales   decimal.Decimal
	CashRefunds decimal.Decimal
	Expenses    decimal.Decimal
	Drops       decimal.Decimal
	Expected    decimal.Decimal
	Actual      decimal.Decimal
	Variance    decimal.Decimal
}

// Reconcile computes what the drawer should hold and how far the count is
// from it. Variance is signed: negative means the drawer is short.
func Reconcile(opening, cashSales, cashRefunds, expenses, drops, actual decimal.Decimal) Reconciliation {
	expected := opening.Add(cashSales).Sub(cashRefunds).Sub(expenses).Sub(drops)
	return Reconciliation{
		Opening:     opening,
		CashSales:   cashSales,
		CashRefunds: cashRefunds,
		Expenses:    expenses,
		Drops:       drops,
		Expected:    expected,
		Actual:      actual,
		Variance:    actual.Sub(expected),
	}
}

// SumExpenses totals the close-time expense entries.
func SumExpenses(expenses []model.ExpenseEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// VarianceOf splits a signed variance into direction and magnitude.
func VarianceOf(variance decimal.Decimal) (model.VarianceType, decimal.Decimal) {
	if variance.IsNegative() {
		return model.VarianceShortage, variance.Neg()
	}
	return model.VarianceOverage, variance
}
