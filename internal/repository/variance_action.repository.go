package repository

import (
	"context"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/pg"
)

// VarianceActionRepository is append only. There is no update or delete;
// the audit trail is the point.
type VarianceActionRepository struct {
	*pg.DB
}

func NewVarianceActionRepository(db *pg.DB) *VarianceActionRepository {
	return &VarianceActionRepository{
		db,
	}
}

func (r *VarianceActionRepository) Append(ctx context.Context, a *model.VarianceAction) (*model.VarianceAction, error) {
	entity := toActionEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toActionModel(entity), nil
}

// ListByVariance returns the trail in the order it was written. The id
// tiebreak keeps entries created in the same instant stable.
func (r *VarianceActionRepository) ListByVariance(ctx context.Context, varianceID int64) ([]*model.VarianceAction, error) {
	var entities []*VarianceActionEntity

	err := r.Read(ctx).WithContext(ctx).
		Where("variance_id = ?", varianceID).
		Order("created_at ASC, id ASC").
		Find(&entities).
		Error

	if err != nil {
		return nil, err
	}

	return toActionModels(entities), nil
}
