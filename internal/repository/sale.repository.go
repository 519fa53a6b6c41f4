package repository

import (
	"context"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/pg"
	"github.com/shopspring/decimal"
)

// SaleRepository aggregates completed sales and refunds for drawer
// reconciliation. Only rows with payment_status = completed count;
// pending and failed payments never touch the drawer math.
type SaleRepository struct {
	*pg.DB
}

func NewSaleRepository(db *pg.DB) *SaleRepository {
	return &SaleRepository{
		db,
	}
}

func (r *SaleRepository) SalesByMethod(ctx context.Context, branchID string, since time.Time) ([]model.MethodTotal, error) {
	var rows []struct {
		PaymentMethod string
		Total         decimal.Decimal
	}

	err := r.Read(ctx).WithContext(ctx).
		Model(&SaleEntity{}).
		Select("payment_method, COALESCE(SUM(amount), 0) AS total").
		Where("branch_id = ? AND payment_status = ? AND created_at >= ?", branchID, model.PaymentStatusCompleted, since).
		Group("payment_method").
		Scan(&rows).
		Error

	if err != nil {
		return nil, err
	}

	totals := make([]model.MethodTotal, len(rows))
	for i, row := range rows {
		totals[i] = model.MethodTotal{PaymentMethod: row.PaymentMethod, Total: row.Total}
	}
	return totals, nil
}

func (r *SaleRepository) SumCashSales(ctx context.Context, branchID string, since time.Time) (decimal.Decimal, error) {
	return r.sumCash(ctx, &SaleEntity{}, branchID, since)
}

func (r *SaleRepository) SumCashRefunds(ctx context.Context, branchID string, since time.Time) (decimal.Decimal, error) {
	return r.sumCash(ctx, &RefundEntity{}, branchID, since)
}

func (r *SaleRepository) sumCash(ctx context.Context, entity interface{}, branchID string, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}

	err := r.Read(ctx).WithContext(ctx).
		Model(entity).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("branch_id = ? AND payment_method = ? AND payment_status = ? AND created_at >= ?",
			branchID, model.PaymentMethodCash, model.PaymentStatusCompleted, since).
		Scan(&row).
		Error

	if err != nil {
		return decimal.Zero, err
	}

	return row.Total, nil
}
