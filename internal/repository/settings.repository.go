package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSettingsNotFound = errors.New("till settings not found for branch")
)

type SettingsRepository struct {
	*pg.DB
}

func NewSettingsRepository(db *pg.DB) *SettingsRepository {
	return &SettingsRepository{
		db,
	}
}

func (r *SettingsRepository) GetByBranch(ctx context.Context, branchID string) (*model.TillSettings, error) {
	var entity TillSettingsEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("branch_id = ?", branchID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	return toSettingsModel(&entity), nil
}

// GetByBranchForUpdate locks the settings row for a read-modify-write.
// Callers must be inside pg.WithinTransaction.
func (r *SettingsRepository) GetByBranchForUpdate(ctx context.Context, branchID string) (*model.TillSettings, error) {
	var entity TillSettingsEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ?", branchID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	return toSettingsModel(&entity), nil
}

// Create inserts a branch's settings row. When two first-readers race, the
// loser gets the winner's row back instead of an error.
func (r *SettingsRepository) Create(ctx context.Context, s *model.TillSettings) (*model.TillSettings, error) {
	entity := toSettingsEntity(s)

	err := r.Write(ctx).WithContext(ctx).Create(entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			return r.GetByBranch(ctx, s.BranchID)
		}
		return nil, err
	}

	return toSettingsModel(entity), nil
}

func (r *SettingsRepository) Update(ctx context.Context, s *model.TillSettings) (*model.TillSettings, error) {
	entity := toSettingsEntity(s)

	result := r.Write(ctx).WithContext(ctx).
		Model(&TillSettingsEntity{}).
		Where("branch_id = ?", entity.BranchID).
		Select("*").
		Omit("id", "branch_id", "created_at").
		Updates(entity)

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrSettingsNotFound
	}

	return r.GetByBranch(ctx, s.BranchID)
}
