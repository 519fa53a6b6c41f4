package repository

import (
	"context"
	"errors"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrVarianceNotFound = errors.New("variance case not found")
)

type VarianceRepository struct {
	*pg.DB
}

func NewVarianceRepository(db *pg.DB) *VarianceRepository {
	return &VarianceRepository{
		db,
	}
}

func (r *VarianceRepository) Create(ctx context.Context, v *model.CashVariance) (*model.CashVariance, error) {
	entity := toVarianceEntity(v)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toVarianceModel(entity), nil
}

func (r *VarianceRepository) GetByID(ctx context.Context, id int64) (*model.CashVariance, error) {
	var entity CashVarianceEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVarianceNotFound
		}
		return nil, err
	}

	return toVarianceModel(&entity), nil
}

// GetByIDForUpdate locks the case row so a workflow transition and its
// audit entry commit together or not at all. Callers must be inside
// pg.WithinTransaction.
func (r *VarianceRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.CashVariance, error) {
	var entity CashVarianceEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVarianceNotFound
		}
		return nil, err
	}

	return toVarianceModel(&entity), nil
}

// Update persists the full case row. State checks belong to the service;
// this just writes what it is given.
func (r *VarianceRepository) Update(ctx context.Context, v *model.CashVariance) (*model.CashVariance, error) {
	entity := toVarianceEntity(v)

	result := r.Write(ctx).WithContext(ctx).
		Model(&CashVarianceEntity{}).
		Where("id = ?", entity.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(entity)

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrVarianceNotFound
	}

	return toVarianceModel(entity), nil
}

func (r *VarianceRepository) List(ctx context.Context, f model.VarianceFilter) ([]*model.CashVariance, int64, error) {
	q := r.filtered(r.Read(ctx).WithContext(ctx).Model(&CashVarianceEntity{}), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CashVarianceEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toVarianceModels(entities), total, nil
}

func (r *VarianceRepository) filtered(q *gorm.DB, f model.VarianceFilter) *gorm.DB {
	if f.BranchID != "" {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	if f.SessionID != 0 {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("resolution_status IN ?", f.Statuses)
	}
	if f.Type != "" {
		q = q.Where("variance_type = ?", f.Type)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	return q
}

// Stats aggregates cases matching the filter. Shortage and overage totals
// are summed in SQL; the net is derived in Go to keep decimal arithmetic
// exact.
func (r *VarianceRepository) Stats(ctx context.Context, f model.VarianceFilter) (*model.VarianceStats, error) {
	var totals struct {
		TotalCases      int64
		TotalShortage   decimal.Decimal
		TotalOverage    decimal.Decimal
		UnresolvedCount int64
	}

	err := r.filtered(r.Read(ctx).WithContext(ctx).Model(&CashVarianceEntity{}), f).
		Select(`
			COUNT(*) AS total_cases,
			COALESCE(SUM(CASE WHEN variance_type = 'SHORTAGE' THEN amount ELSE 0 END), 0) AS total_shortage,
			COALESCE(SUM(CASE WHEN variance_type = 'OVERAGE' THEN amount ELSE 0 END), 0) AS total_overage,
			COALESCE(SUM(CASE WHEN resolution_status IN ('PENDING', 'INVESTIGATING') THEN 1 ELSE 0 END), 0) AS unresolved_count
		`).
		Scan(&totals).
		Error
	if err != nil {
		return nil, err
	}

	stats := &model.VarianceStats{
		TotalCases:      totals.TotalCases,
		TotalShortage:   totals.TotalShortage,
		TotalOverage:    totals.TotalOverage,
		NetVariance:     totals.TotalOverage.Sub(totals.TotalShortage),
		UnresolvedCount: totals.UnresolvedCount,
		ByCategory:      map[model.VarianceCategory]int64{},
		ByStatus:        map[model.ResolutionStatus]int64{},
	}

	var byCategory []struct {
		Category string
		N        int64
	}
	err = r.filtered(r.Read(ctx).WithContext(ctx).Model(&CashVarianceEntity{}), f).
		Select("category, COUNT(*) AS n").
		Group("category").
		Scan(&byCategory).
		Error
	if err != nil {
		return nil, err
	}
	for _, row := range byCategory {
		stats.ByCategory[model.VarianceCategory(row.Category)] = row.N
	}

	var byStatus []struct {
		ResolutionStatus string
		N                int64
	}
	err = r.filtered(r.Read(ctx).WithContext(ctx).Model(&CashVarianceEntity{}), f).
		Select("resolution_status, COUNT(*) AS n").
		Group("resolution_status").
		Scan(&byStatus).
		Error
	if err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[model.ResolutionStatus(row.ResolutionStatus)] = row.N
	}

	return stats, nil
}
