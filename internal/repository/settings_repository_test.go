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

func TestSettingsRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	t.Run("not found before create", func(t *testing.T) {
		_, err := repo.GetByBranch(ctx, "branch-404")
		assert.ErrorIs(t, err, ErrSettingsNotFound)
	})

	t.Run("create defaults", func(t *testing.T) {
		defaults := model.DefaultTillSettings("branch-001")
		defaults.CreatedAt = time.Now().UTC()
		defaults.UpdatedAt = defaults.CreatedAt

		created, err := repo.Create(ctx, defaults)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.True(t, created.VarianceAlertsEnabled)
		assert.Equal(t, "10.00", created.VarianceThreshold.StringFixed(2))
	})

	t.Run("duplicate create returns existing row", func(t *testing.T) {
		again := model.DefaultTillSettings("branch-001")
		again.VarianceThreshold = decimal.NewFromInt(99)
		again.CreatedAt = time.Now().UTC()
		again.UpdatedAt = again.CreatedAt

		got, err := repo.Create(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, "10.00", got.VarianceThreshold.StringFixed(2))
	})
}

func TestSettingsRepository_Update(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	defaults := model.DefaultTillSettings("branch-002")
	defaults.CreatedAt = time.Now().UTC()
	defaults.UpdatedAt = defaults.CreatedAt
	created, err := repo.Create(ctx, defaults)
	require.NoError(t, err)

	created.VarianceThreshold = decimal.NewFromFloat(25.50)
	created.AutoCashDropsEnabled = true
	created.UpdatedAt = time.Now().UTC()

	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "25.50", updated.VarianceThreshold.StringFixed(2))
	assert.True(t, updated.AutoCashDropsEnabled)

	t.Run("unknown branch", func(t *testing.T) {
		missing := model.DefaultTillSettings("branch-404")
		missing.UpdatedAt = time.Now().UTC()
		_, err := repo.Update(ctx, missing)
		assert.ErrorIs(t, err, ErrSettingsNotFound)
	})
}
