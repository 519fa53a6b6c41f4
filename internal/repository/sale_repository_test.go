package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaleRepository_SumCashSales(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewSaleRepository(tdb.DB)
	ctx := context.Background()

	since := time.Now().UTC().Add(-time.Hour)

	seed := []SaleEntity{
		{BranchID: "branch-001", PaymentMethod: "cash", PaymentStatus: "completed", Amount: decimal.NewFromInt(2000), CreatedAt: since.Add(time.Minute)},
		{BranchID: "branch-001", PaymentMethod: "cash", PaymentStatus: "completed", Amount: decimal.NewFromInt(1500), CreatedAt: since.Add(2 * time.Minute)},
		{BranchID: "branch-001", PaymentMethod: "card", PaymentStatus: "completed", Amount: decimal.NewFromInt(800), CreatedAt: since.Add(3 * time.Minute)},
		{BranchID: "branch-001", PaymentMethod: "cash", PaymentStatus: "pending", Amount: decimal.NewFromInt(300), CreatedAt: since.Add(4 * time.Minute)},
		{BranchID: "branch-001", PaymentMethod: "cash", PaymentStatus: "completed", Amount: decimal.NewFromInt(100), CreatedAt: since.Add(-time.Minute)},
		{BranchID: "branch-002", PaymentMethod: "cash", PaymentStatus: "completed", Amount: decimal.NewFromInt(50), CreatedAt: since.Add(time.Minute)},
	}
	for i := range seed {
		require.NoError(t, tdb.rawDB.Create(&seed[i]).Error)
	}

	t.Run("only completed cash sales in the window", func(t *testing.T) {
		total, err := repo.SumCashSales(ctx, "branch-001", since)
		require.NoError(t, err)
		assert.Equal(t, "3500.00", total.StringFixed(2))
	})

	t.Run("breakdown by payment method", func(t *testing.T) {
		totals, err := repo.SalesByMethod(ctx, "branch-001", since)
		require.NoError(t, err)

		byMethod := map[string]string{}
		for _, mt := range totals {
			byMethod[mt.PaymentMethod] = mt.Total.StringFixed(2)
		}
		assert.Equal(t, "3500.00", byMethod["cash"])
		assert.Equal(t, "800.00", byMethod["card"])
	})

	t.Run("no sales", func(t *testing.T) {
		total, err := repo.SumCashSales(ctx, "branch-404", since)
		require.NoError(t, err)
		assert.Equal(t, "0.00", total.StringFixed(2))
	})
}

func TestSaleRepository_SumCashRefunds(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewSaleRepository(tdb.DB)
	ctx := context.Background()

	since := time.Now().UTC().Add(-time.Hour)

	refunds := []RefundEntity{
		{BranchID: "branch-001", PaymentMethod: "cash", PaymentStatus: "completed", Amount: decimal.NewFromFloat(49.99), CreatedAt: since.Add(time.Minute)},
		{BranchID: "branch-001", PaymentMethod: "card", PaymentStatus: "completed", Amount: decimal.NewFromInt(30), CreatedAt: since.Add(time.Minute)},
	}
	for i := range refunds {
		require.NoError(t, tdb.rawDB.Create(&refunds[i]).Error)
	}

	total, err := repo.SumCashRefunds(ctx, "branch-001", since)
	require.NoError(t, err)
	assert.Equal(t, "49.99", total.StringFixed(2))
}
