package repository

import (
	"context"
	"testing"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createVariance(t *testing.T, repo *VarianceRepository, branchID string, vt model.VarianceType, amount float64, status model.ResolutionStatus) *model.CashVariance {
	t.Helper()
	now := time.Now().UTC()
	v, err := repo.Create(context.Background(), &model.CashVariance{
		SessionID:        1,
		BranchID:         branchID,
		VarianceType:     vt,
		Amount:           decimal.NewFromFloat(amount),
		Category:         model.CategoryUnknown,
		ReportedBy:       "cashier-1",
		ResolutionStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)
	return v
}

func TestVarianceRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewVarianceRepository(db)
	ctx := context.Background()

	v := createVariance(t, repo, "branch-001", model.VarianceShortage, 25.75, model.StatusPending)
	assert.NotZero(t, v.ID)

	got, err := repo.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VarianceShortage, got.VarianceType)
	assert.Equal(t, "25.75", got.Amount.StringFixed(2))
	assert.Equal(t, model.StatusPending, got.ResolutionStatus)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrVarianceNotFound)
}

func TestVarianceRepository_Update(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewVarianceRepository(db)
	ctx := context.Background()

	v := createVariance(t, repo, "branch-001", model.VarianceOverage, 10, model.StatusPending)

	v.ResolutionStatus = model.StatusInvestigating
	v.InvestigatedBy = "manager-1"
	v.InvestigationNotes = "recount scheduled"
	v.UpdatedAt = time.Now().UTC()

	updated, err := repo.Update(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvestigating, updated.ResolutionStatus)

	got, err := repo.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvestigating, got.ResolutionStatus)
	assert.Equal(t, "manager-1", got.InvestigatedBy)
	assert.Equal(t, "recount scheduled", got.InvestigationNotes)

	t.Run("missing case", func(t *testing.T) {
		missing := *v
		missing.ID = 99999
		_, err := repo.Update(ctx, &missing)
		assert.ErrorIs(t, err, ErrVarianceNotFound)
	})
}

func TestVarianceRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewVarianceRepository(db)
	ctx := context.Background()

	createVariance(t, repo, "branch-001", model.VarianceShortage, 5, model.StatusPending)
	createVariance(t, repo, "branch-001", model.VarianceOverage, 8, model.StatusResolved)
	createVariance(t, repo, "branch-002", model.VarianceShortage, 12, model.StatusPending)

	t.Run("filter by branch", func(t *testing.T) {
		cases, total, err := repo.List(ctx, model.VarianceFilter{BranchID: "branch-001"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, cases, 2)
	})

	t.Run("filter by status", func(t *testing.T) {
		cases, total, err := repo.List(ctx, model.VarianceFilter{
			Statuses: []model.ResolutionStatus{model.StatusPending},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, cases, 2)
	})

	t.Run("filter by type", func(t *testing.T) {
		cases, total, err := repo.List(ctx, model.VarianceFilter{Type: model.VarianceOverage})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, cases, 1)
		assert.Equal(t, "8.00", cases[0].Amount.StringFixed(2))
	})
}

func TestVarianceRepository_Stats(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewVarianceRepository(db)
	ctx := context.Background()

	createVariance(t, repo, "branch-001", model.VarianceShortage, 20.50, model.StatusPending)
	createVariance(t, repo, "branch-001", model.VarianceShortage, 4.50, model.StatusResolved)
	createVariance(t, repo, "branch-001", model.VarianceOverage, 10, model.StatusInvestigating)
	createVariance(t, repo, "branch-002", model.VarianceOverage, 100, model.StatusPending)

	stats, err := repo.Stats(ctx, model.VarianceFilter{BranchID: "branch-001"})
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.TotalCases)
	assert.Equal(t, "25.00", stats.TotalShortage.StringFixed(2))
	assert.Equal(t, "10.00", stats.TotalOverage.StringFixed(2))
	assert.Equal(t, "-15.00", stats.NetVariance.StringFixed(2))
	assert.EqualValues(t, 2, stats.UnresolvedCount)
	assert.EqualValues(t, 3, stats.ByCategory[model.CategoryUnknown])
	assert.EqualValues(t, 1, stats.ByStatus[model.StatusPending])
	assert.EqualValues(t, 1, stats.ByStatus[model.StatusInvestigating])
	assert.EqualValues(t, 1, stats.ByStatus[model.StatusResolved])
}

func TestVarianceActionRepository_AppendAndList(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewVarianceActionRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	entries := []struct {
		action model.ActionType
		notes  string
	}{
		{model.ActionCreated, "case opened"},
		{model.ActionInvestigated, "recount started"},
		{model.ActionApproved, "write-off approved"},
	}
	for i, e := range entries {
		_, err := repo.Append(ctx, &model.VarianceAction{
			VarianceID: 5,
			ActionType: e.action,
			ActionBy:   "manager-1",
			Notes:      e.notes,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	actions, err := repo.ListByVariance(ctx, 5)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, model.ActionCreated, actions[0].ActionType)
	assert.Equal(t, model.ActionInvestigated, actions[1].ActionType)
	assert.Equal(t, model.ActionApproved, actions[2].ActionType)

	t.Run("empty trail", func(t *testing.T) {
		actions, err := repo.ListByVariance(ctx, 404)
		require.NoError(t, err)
		assert.Empty(t, actions)
	})
}
