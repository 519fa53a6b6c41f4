package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/repository"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/prom"
)

type VarianceRepository interface {
	Create(ctx context.Context, v *model.CashVariance) (*model.CashVariance, error)
	GetByID(ctx context.Context, id int64) (*model.CashVariance, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.CashVariance, error)
	Update(ctx context.Context, v *model.CashVariance) (*model.CashVariance, error)
	List(ctx context.Context, f model.VarianceFilter) ([]*model.CashVariance, int64, error)
	Stats(ctx context.Context, f model.VarianceFilter) (*model.VarianceStats, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type VarianceActionRepository interface {
	Append(ctx context.Context, a *model.VarianceAction) (*model.VarianceAction, error)
	ListByVariance(ctx context.Context, varianceID int64) ([]*model.VarianceAction, error)
}

// AlertPublisher hands threshold breaches to the alert pipeline. Nil is
// allowed; alerting is then off.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert model.VarianceAlert) error
}

type InvestigateRequest struct {
	Notes string
}

type ResolveRequest struct {
	Status model.ResolutionStatus
	Notes  string
}

type ApproveRequest struct {
	Approved bool
	Notes    string
}

// VarianceService owns the case state machine. Every transition writes the
// case row and exactly one audit action in the same transaction.
type VarianceService struct {
	cases    VarianceRepository
	actions  VarianceActionRepository
	settings SettingsProvider
	alerts   AlertPublisher
}

func NewVarianceService(cases VarianceRepository, actions VarianceActionRepository, settings SettingsProvider, alerts AlertPublisher) *VarianceService {
	return &VarianceService{
		cases:    cases,
		actions:  actions,
		settings: settings,
		alerts:   alerts,
	}
}

func (s *VarianceService) Create(ctx context.Context, req model.CreateVarianceRequest) (*model.CashVariance, error) {
	actor, ok := model.ActorFromContext(ctx)
	if !ok {
		return nil, Validation("acting user is required")
	}
	if err := req.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}

	category := req.Category
	if category == "" {
		category = model.CategoryUnknown
	}

	now := time.Now().UTC()
	var created *model.CashVariance
	err := s.cases.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.cases.Create(ctx, &model.CashVariance{
			SessionID:        req.SessionID,
			BranchID:         req.BranchID,
			VarianceType:     req.Type,
			Amount:           req.Amount,
			Category:         category,
			Description:      req.Description,
			ReportedBy:       actor.ID,
			ResolutionStatus: model.StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return Persistence(err, "create variance case")
		}

		_, err = s.actions.Append(ctx, &model.VarianceAction{
			VarianceID: created.ID,
			ActionType: model.ActionCreated,
			ActionBy:   actor.ID,
			Notes:      req.Description,
			NewValue:   string(model.StatusPending),
			CreatedAt:  now,
		})
		if err != nil {
			return Persistence(err, "append audit action")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "create variance case")
	}

	prom.IncVarianceCase(string(created.VarianceType))
	prom.ObserveVarianceAmount(created.Amount.InexactFloat64(), string(created.VarianceType))
	s.maybeAlert(ctx, created)
	return created, nil
}

func (s *VarianceService) Get(ctx context.Context, id int64) (*model.CashVariance, error) {
	v, err := s.cases.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrVarianceNotFound) {
			return nil, NotFound("variance case %d not found", id)
		}
		return nil, Persistence(err, "load variance case")
	}
	return v, nil
}

func (s *VarianceService) List(ctx context.Context, f model.VarianceFilter) ([]*model.CashVariance, int64, error) {
	for _, status := range f.Statuses {
		if !status.Valid() {
			return nil, 0, Validation("unknown resolution status %q", status)
		}
	}
	cases, total, err := s.cases.List(ctx, f)
	if err != nil {
		return nil, 0, Persistence(err, "list variance cases")
	}
	return cases, total, nil
}

func (s *VarianceService) Stats(ctx context.Context, f model.VarianceFilter) (*model.VarianceStats, error) {
	stats, err := s.cases.Stats(ctx, f)
	if err != nil {
		return nil, Persistence(err, "aggregate variance stats")
	}
	return stats, nil
}

// Actions returns the audit trail, oldest entry first.
func (s *VarianceService) Actions(ctx context.Context, id int64) ([]*model.VarianceAction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	actions, err := s.actions.ListByVariance(ctx, id)
	if err != nil {
		return nil, Persistence(err, "list audit actions")
	}
	return actions, nil
}

// Investigate moves a case to INVESTIGATING and records who took it.
func (s *VarianceService) Investigate(ctx context.Context, id int64, req InvestigateRequest) (*model.CashVariance, error) {
	return s.transition(ctx, id, func(actor model.Actor, v *model.CashVariance, now time.Time) (*model.VarianceAction, error) {
		if v.ResolutionStatus.Terminal() {
			return nil, Conflict("variance case %d is already %s", id, v.ResolutionStatus)
		}
		old := v.ResolutionStatus
		v.ResolutionStatus = model.StatusInvestigating
		v.InvestigatedBy = actor.ID
		if req.Notes != "" {
			v.InvestigationNotes = joinNotes(v.InvestigationNotes, req.Notes)
		}
		return &model.VarianceAction{
			ActionType: model.ActionInvestigated,
			Notes:      req.Notes,
			OldValue:   string(old),
			NewValue:   string(model.StatusInvestigating),
		}, nil
	})
}

// Resolve closes a case as RESOLVED, or escalates it as UNRESOLVED when
// the cause could not be determined.
func (s *VarianceService) Resolve(ctx context.Context, id int64, req ResolveRequest) (*model.CashVariance, error) {
	if req.Status != model.StatusResolved && req.Status != model.StatusUnresolved {
		return nil, Validation("resolve status must be RESOLVED or UNRESOLVED")
	}
	return s.transition(ctx, id, func(actor model.Actor, v *model.CashVariance, now time.Time) (*model.VarianceAction, error) {
		if v.ResolutionStatus.Terminal() {
			return nil, Conflict("variance case %d is already %s", id, v.ResolutionStatus)
		}
		old := v.ResolutionStatus
		v.ResolutionStatus = req.Status
		v.ResolvedAt = &now
		if req.Notes != "" {
			v.InvestigationNotes = joinNotes(v.InvestigationNotes, req.Notes)
		}

		actionType := model.ActionResolved
		if req.Status == model.StatusUnresolved {
			actionType = model.ActionEscalated
		}
		return &model.VarianceAction{
			ActionType: actionType,
			Notes:      req.Notes,
			OldValue:   string(old),
			NewValue:   string(req.Status),
		}, nil
	})
}

// Approve records a manager's decision. Approval is only reachable from an
// active case; rejecting sends the case back to investigation.
func (s *VarianceService) Approve(ctx context.Context, id int64, req ApproveRequest) (*model.CashVariance, error) {
	return s.transition(ctx, id, func(actor model.Actor, v *model.CashVariance, now time.Time) (*model.VarianceAction, error) {
		if v.ResolutionStatus.Terminal() {
			return nil, Conflict("variance case %d is already %s", id, v.ResolutionStatus)
		}
		old := v.ResolutionStatus
		v.ManagerID = actor.ID
		v.ManagerNotes = req.Notes

		if req.Approved {
			v.ResolutionStatus = model.StatusManagerApproved
			v.ManagerApproval = true
			v.ResolvedAt = &now
			return &model.VarianceAction{
				ActionType: model.ActionApproved,
				Notes:      req.Notes,
				OldValue:   string(old),
				NewValue:   string(model.StatusManagerApproved),
			}, nil
		}

		v.ResolutionStatus = model.StatusInvestigating
		v.ManagerApproval = false
		return &model.VarianceAction{
			ActionType: model.ActionRejected,
			Notes:      req.Notes,
			OldValue:   string(old),
			NewValue:   string(model.StatusInvestigating),
		}, nil
	})
}

// UpdateCategory reclassifies an active case.
func (s *VarianceService) UpdateCategory(ctx context.Context, id int64, category model.VarianceCategory, notes string) (*model.CashVariance, error) {
	if !category.Valid() {
		return nil, Validation("unknown variance category %q", category)
	}
	return s.transition(ctx, id, func(actor model.Actor, v *model.CashVariance, now time.Time) (*model.VarianceAction, error) {
		if v.ResolutionStatus.Terminal() {
			return nil, Conflict("variance case %d is already %s", id, v.ResolutionStatus)
		}
		old := v.Category
		v.Category = category
		return &model.VarianceAction{
			ActionType: model.ActionCategoryUpdated,
			Notes:      notes,
			OldValue:   string(old),
			NewValue:   string(category),
		}, nil
	})
}

// Update applies a partial edit to an active case. A category change is
// audited as such; anything else lands as a comment entry.
func (s *VarianceService) Update(ctx context.Context, id int64, req model.UpdateVarianceRequest) (*model.CashVariance, error) {
	if err := req.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}
	return s.transition(ctx, id, func(actor model.Actor, v *model.CashVariance, now time.Time) (*model.VarianceAction, error) {
		if v.ResolutionStatus.Terminal() {
			return nil, Conflict("variance case %d is already %s", id, v.ResolutionStatus)
		}

		action := &model.VarianceAction{
			ActionType: model.ActionCommentAdded,
			Notes:      "case details updated",
		}
		if req.Category != nil && *req.Category != v.Category {
			action.ActionType = model.ActionCategoryUpdated
			action.OldValue = string(v.Category)
			action.NewValue = string(*req.Category)
			v.Category = *req.Category
		}
		if req.Description != nil {
			v.Description = *req.Description
		}
		if req.InvestigationNotes != nil {
			v.InvestigationNotes = *req.InvestigationNotes
		}
		return action, nil
	})
}

// AddComment appends a free-form audit entry without touching the case
// state. Comments are allowed on terminal cases too.
func (s *VarianceService) AddComment(ctx context.Context, id int64, comment string) (*model.VarianceAction, error) {
	actor, ok := model.ActorFromContext(ctx)
	if !ok {
		return nil, Validation("acting user is required")
	}
	if comment == "" {
		return nil, Validation("comment is required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	action, err := s.actions.Append(ctx, &model.VarianceAction{
		VarianceID: id,
		ActionType: model.ActionCommentAdded,
		ActionBy:   actor.ID,
		Notes:      comment,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, Persistence(err, "append audit action")
	}
	return action, nil
}

// transition runs one state change: lock the row, let mutate edit the case
// and describe its audit entry, then persist both together.
func (s *VarianceService) transition(ctx context.Context, id int64, mutate func(actor model.Actor, v *model.CashVariance, now time.Time) (*model.VarianceAction, error)) (*model.CashVariance, error) {
	actor, ok := model.ActorFromContext(ctx)
	if !ok {
		return nil, Validation("acting user is required")
	}

	var updated *model.CashVariance
	err := s.cases.WithinTransaction(ctx, func(ctx context.Context) error {
		v, err := s.cases.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrVarianceNotFound) {
				return NotFound("variance case %d not found", id)
			}
			return Persistence(err, "load variance case")
		}

		now := time.Now().UTC()
		action, err := mutate(actor, v, now)
		if err != nil {
			return err
		}
		v.UpdatedAt = now

		updated, err = s.cases.Update(ctx, v)
		if err != nil {
			return Persistence(err, "update variance case")
		}

		action.VarianceID = id
		action.ActionBy = actor.ID
		action.CreatedAt = now
		if _, err := s.actions.Append(ctx, action); err != nil {
			return Persistence(err, "append audit action")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "variance transition")
	}
	return updated, nil
}

// maybeAlert publishes a queue event when the case breaches the branch
// threshold. Alert failures are logged, never surfaced to the caller.
func (s *VarianceService) maybeAlert(ctx context.Context, v *model.CashVariance) {
	if s.alerts == nil {
		return
	}
	settings, err := s.settings.Get(ctx, v.BranchID)
	if err != nil {
		logger.Warn("variance alert skipped, settings unavailable", "branch", v.BranchID, "error", err)
		return
	}
	if !settings.VarianceAlertsEnabled || v.Amount.LessThan(settings.VarianceThreshold) {
		return
	}

	alert := model.VarianceAlert{
		EventID:    uuid.NewString(),
		VarianceID: v.ID,
		SessionID:  v.SessionID,
		BranchID:   v.BranchID,
		Type:       v.VarianceType,
		Amount:     v.Amount,
		Threshold:  settings.VarianceThreshold,
		OccurredAt: v.CreatedAt,
	}
	if err := s.alerts.PublishAlert(ctx, alert); err != nil {
		logger.Error("variance alert publish failed", "variance_id", v.ID, "error", err)
		return
	}
	logger.Info("variance alert published", "variance_id", v.ID, "branch", v.BranchID, "amount", v.Amount.String())
}
