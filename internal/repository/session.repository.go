package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSessionNotFound      = errors.New("till session not found")
	ErrNoOpenSession        = errors.New("no open till session for branch")
	ErrOpenSessionExists    = errors.New("branch already has an open till session")
	ErrSessionAlreadyClosed = errors.New("till session already closed")
	ErrConcurrentUpdate     = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded   = errors.New("max retries exceeded")
)

type SessionRepository struct {
	*pg.DB
}

func NewSessionRepository(db *pg.DB) *SessionRepository {
	return &SessionRepository{
		db,
	}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.TillSession) (*model.TillSession, error) {
	entity := toSessionEntity(s)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		// the partial unique index on (branch_id) WHERE status = 'OPEN'
		// is the last line of defense behind the in-process branch lock
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrOpenSessionExists
		}
		return nil, err
	}

	return toSessionModel(entity), nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.TillSession, error) {
	var entity TillSessionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return toSessionModel(&entity), nil
}

func (r *SessionRepository) GetOpenByBranch(ctx context.Context, branchID string) (*model.TillSession, error) {
	var entity TillSessionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchID, model.SessionStatusOpen).
		Order("opening_time DESC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	return toSessionModel(&entity), nil
}

// GetOpenByBranchForUpdate locks the branch's open session row for the
// duration of the surrounding transaction. Callers must be inside
// pg.WithinTransaction.
func (r *SessionRepository) GetOpenByBranchForUpdate(ctx context.Context, branchID string) (*model.TillSession, error) {
	var entity TillSessionEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND status = ?", branchID, model.SessionStatusOpen).
		Order("opening_time DESC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	return toSessionModel(&entity), nil
}

// SessionClose carries the fields written when a session transitions to
// CLOSED. Everything is set in one guarded UPDATE.
type SessionClose struct {
	ClosedBy       string
	ClosingAmount  decimal.Decimal
	ClosingTime    time.Time
	ExpectedAmount decimal.Decimal
	VarianceAmount decimal.Decimal
	Notes          string
}

// Close performs the OPEN -> CLOSED transition with automatic retry on
// transient errors. The status guard in the WHERE clause makes a double
// close impossible regardless of interleaving.
func (r *SessionRepository) Close(ctx context.Context, sessionID int64, c SessionClose) (*model.TillSession, error) {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		s, err := r.closeAttempt(ctx, sessionID, c)

		if err == nil {
			return s, nil
		}

		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionAlreadyClosed) {
			return nil, err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return nil, fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *SessionRepository) closeAttempt(ctx context.Context, sessionID int64, c SessionClose) (*model.TillSession, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TillSessionEntity{}).
		Where("id = ? AND status = ?", sessionID, model.SessionStatusOpen).
		Updates(map[string]interface{}{
			"status":          string(model.SessionStatusClosed),
			"closed_by":       c.ClosedBy,
			"closing_amount":  c.ClosingAmount,
			"closing_time":    c.ClosingTime,
			"expected_amount": c.ExpectedAmount,
			"variance_amount": c.VarianceAmount,
			"notes":           c.Notes,
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, r.checkCloseFailureReason(ctx, sessionID)
	}

	var entity TillSessionEntity
	if err := r.Write(ctx).WithContext(ctx).Where("id = ?", sessionID).First(&entity).Error; err != nil {
		return nil, err
	}

	return toSessionModel(&entity), nil
}

// checkCloseFailureReason determines why the guarded update matched no rows.
func (r *SessionRepository) checkCloseFailureReason(ctx context.Context, sessionID int64) error {
	var entity TillSessionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", sessionID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if entity.Status == string(model.SessionStatusClosed) {
		return ErrSessionAlreadyClosed
	}

	return ErrConcurrentUpdate
}

func (r *SessionRepository) List(ctx context.Context, f model.SessionFilter) ([]*model.TillSession, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TillSessionEntity{})

	if f.BranchID != "" {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("opening_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("opening_time < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "opening_time"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TillSessionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toSessionModels(entities), total, nil
}
