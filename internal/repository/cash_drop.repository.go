package repository

import (
	"context"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/pg"
	"github.com/shopspring/decimal"
)

type CashDropRepository struct {
	*pg.DB
}

func NewCashDropRepository(db *pg.DB) *CashDropRepository {
	return &CashDropRepository{
		db,
	}
}

func (r *CashDropRepository) Create(ctx context.Context, d *model.CashDrop) (*model.CashDrop, error) {
	entity := toCashDropEntity(d)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCashDropModel(entity), nil
}

// SumForSession returns the total dropped during one session. Zero when
// the session has no drops.
func (r *CashDropRepository) SumForSession(ctx context.Context, sessionID int64) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}

	err := r.Read(ctx).WithContext(ctx).
		Model(&CashDropEntity{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("session_id = ?", sessionID).
		Scan(&row).
		Error

	if err != nil {
		return decimal.Zero, err
	}

	return row.Total, nil
}

func (r *CashDropRepository) ListBySession(ctx context.Context, sessionID int64) ([]*model.CashDrop, error) {
	var entities []*CashDropEntity

	err := r.Read(ctx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&entities).
		Error

	if err != nil {
		return nil, err
	}

	return toCashDropModels(entities), nil
}
