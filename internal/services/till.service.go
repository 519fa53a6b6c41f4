package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/repository"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/retailcore/till-service/pkg/prom"
	"github.com/shopspring/decimal"
)

type SessionRepository interface {
	Create(ctx context.Context, s *model.TillSession) (*model.TillSession, error)
	GetByID(ctx context.Context, id int64) (*model.TillSession, error)
	GetOpenByBranch(ctx context.Context, branchID string) (*model.TillSession, error)
	GetOpenByBranchForUpdate(ctx context.Context, branchID string) (*model.TillSession, error)
	Close(ctx context.Context, sessionID int64, c repository.SessionClose) (*model.TillSession, error)
	List(ctx context.Context, f model.SessionFilter) ([]*model.TillSession, int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CashDropRepository interface {
	Create(ctx context.Context, d *model.CashDrop) (*model.CashDrop, error)
	SumForSession(ctx context.Context, sessionID int64) (decimal.Decimal, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*model.CashDrop, error)
}

type SaleReader interface {
	SalesByMethod(ctx context.Context, branchID string, since time.Time) ([]model.MethodTotal, error)
	SumCashSales(ctx context.Context, branchID string, since time.Time) (decimal.Decimal, error)
	SumCashRefunds(ctx context.Context, branchID string, since time.Time) (decimal.Decimal, error)
}

type SettingsProvider interface {
	Get(ctx context.Context, branchID string) (*model.TillSettings, error)
}

// VarianceOpener opens a discrepancy case. Satisfied by VarianceService.
type VarianceOpener interface {
	Create(ctx context.Context, req model.CreateVarianceRequest) (*model.CashVariance, error)
}

type TillService struct {
	sessions  SessionRepository
	drops     CashDropRepository
	sales     SaleReader
	settings  SettingsProvider
	variances VarianceOpener
	locks     *branchLock
}

func NewTillService(sessions SessionRepository, drops CashDropRepository, sales SaleReader, settings SettingsProvider, variances VarianceOpener) *TillService {
	return &TillService{
		sessions:  sessions,
		drops:     drops,
		sales:     sales,
		settings:  settings,
		variances: variances,
		locks:     newBranchLock(),
	}
}

// OpenSession starts a drawer period for a branch. At most one session per
// branch may be open; the in-process lock plus the row checks inside the
// transaction enforce that.
func (s *TillService) OpenSession(ctx context.Context, req model.OpenSessionRequest) (*model.TillSession, error) {
	actor, ok := model.ActorFromContext(ctx)
	if !ok {
		return nil, Validation("acting user is required")
	}
	if err := req.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}

	settings, err := s.settings.Get(ctx, req.BranchID)
	if err != nil {
		return nil, err
	}
	if !settings.TillCashManagementEnabled {
		return nil, Conflict("till cash management is disabled for branch %s", req.BranchID)
	}
	if settings.MaxTillAmount.IsPositive() && req.OpeningAmount.GreaterThan(settings.MaxTillAmount) {
		return nil, Validation("opening amount %s exceeds branch limit %s", req.OpeningAmount, settings.MaxTillAmount)
	}

	unlock := s.locks.Lock(req.BranchID)
	defer unlock()

	var created *model.TillSession
	err = s.sessions.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := s.sessions.GetOpenByBranchForUpdate(ctx, req.BranchID)
		if err == nil {
			return Conflict("branch %s already has an open till session", req.BranchID)
		}
		if !errors.Is(err, repository.ErrNoOpenSession) {
			return Persistence(err, "check open session")
		}

		created, err = s.sessions.Create(ctx, &model.TillSession{
			BranchID:      req.BranchID,
			OpenedBy:      actor.ID,
			OpeningAmount: req.OpeningAmount,
			OpeningTime:   time.Now().UTC(),
			Status:        model.SessionStatusOpen,
			Notes:         req.Notes,
		})
		if err != nil {
			if errors.Is(err, repository.ErrOpenSessionExists) {
				return Conflict("branch %s already has an open till session", req.BranchID)
			}
			return Persistence(err, "create session")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "open session")
	}

	prom.IncSessionOpened(req.BranchID)
	logger.Info("till session opened", "branch", req.BranchID, "session_id", created.ID, "opened_by", actor.ID)
	return created, nil
}

func (s *TillService) GetCurrentSession(ctx context.Context, branchID string) (*model.TillSession, error) {
	if branchID == "" {
		return nil, Validation("branch_id is required")
	}
	session, err := s.sessions.GetOpenByBranch(ctx, branchID)
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenSession) {
			return nil, NotFound("branch %s has no open till session", branchID)
		}
		return nil, Persistence(err, "load open session")
	}
	return session, nil
}

// GetTillSummary recomputes the live drawer view from source data on
// every call.
func (s *TillService) GetTillSummary(ctx context.Context, branchID string) (*model.TillSummary, error) {
	session, err := s.GetCurrentSession(ctx, branchID)
	if err != nil {
		return nil, err
	}

	byMethod, err := s.sales.SalesByMethod(ctx, branchID, session.OpeningTime)
	if err != nil {
		return nil, Persistence(err, "aggregate sales")
	}
	cashRefunds, err := s.sales.SumCashRefunds(ctx, branchID, session.OpeningTime)
	if err != nil {
		return nil, Persistence(err, "aggregate refunds")
	}
	dropsTotal, err := s.drops.SumForSession(ctx, session.ID)
	if err != nil {
		return nil, Persistence(err, "aggregate drops")
	}

	salesTotal := decimal.Zero
	cashSales := decimal.Zero
	methods := make(map[string]decimal.Decimal, len(byMethod))
	for _, mt := range byMethod {
		methods[mt.PaymentMethod] = mt.Total
		salesTotal = salesTotal.Add(mt.Total)
		if mt.PaymentMethod == model.PaymentMethodCash {
			cashSales = mt.Total
		}
	}

	return &model.TillSummary{
		BranchID:      branchID,
		SessionID:     session.ID,
		OpeningAmount: session.OpeningAmount,
		SalesTotal:    salesTotal,
		SalesByMethod: methods,
		RefundsTotal:  cashRefunds,
		DropsTotal:    dropsTotal,
		CurrentAmount: session.OpeningAmount.Add(cashSales).Sub(cashRefunds).Sub(dropsTotal),
		AsOf:          time.Now().UTC(),
	}, nil
}

// PerformCashDrop moves cash from the drawer to the safe mid-session. The
// drop may never exceed what the drawer currently holds.
func (s *TillService) PerformCashDrop(ctx context.Context, req model.CashDropRequest) (*model.CashDrop, error) {
	actor, ok := model.ActorFromContext(ctx)
	if !ok {
		return nil, Validation("acting user is required")
	}
	if err := req.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}

	unlock := s.locks.Lock(req.BranchID)
	defer unlock()

	var created *model.CashDrop
	err := s.sessions.WithinTransaction(ctx, func(ctx context.Context) error {
		session, err := s.sessions.GetOpenByBranchForUpdate(ctx, req.BranchID)
		if err != nil {
			if errors.Is(err, repository.ErrNoOpenSession) {
				return Conflict("branch %s has no open till session", req.BranchID)
			}
			return Persistence(err, "load open session")
		}

		inDrawer, err := s.cashInDrawer(ctx, session)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(inDrawer) {
			return Validation("drop amount %s exceeds cash in drawer %s", req.Amount, inDrawer)
		}

		created, err = s.drops.Create(ctx, &model.CashDrop{
			SessionID:        session.ID,
			BranchID:         req.BranchID,
			Amount:           req.Amount,
			Reason:           req.Reason,
			PerformedBy:      actor.ID,
			TillAmountBefore: inDrawer,
			TillAmountAfter:  inDrawer.Sub(req.Amount),
			CreatedAt:        time.Now().UTC(),
		})
		if err != nil {
			return Persistence(err, "create cash drop")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "perform cash drop")
	}

	prom.IncCashDrop(req.BranchID)
	logger.Info("cash drop recorded", "branch", req.BranchID, "session_id", created.SessionID, "amount", created.Amount.String())
	return created, nil
}

// CloseSession counts the drawer out, persists the reconciliation on the
// session row and opens a variance case when the count is off. Everything
// commits in one transaction.
func (s *TillService) CloseSession(ctx context.Context, req model.CloseSessionRequest) (*model.CloseResult, error) {
	actor, ok := model.ActorFromContext(ctx)
	if !ok {
		return nil, Validation("acting user is required")
	}
	if err := req.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}

	unlock := s.locks.Lock(req.BranchID)
	defer unlock()

	var result *model.CloseResult
	err := s.sessions.WithinTransaction(ctx, func(ctx context.Context) error {
		session, err := s.sessions.GetOpenByBranchForUpdate(ctx, req.BranchID)
		if err != nil {
			if errors.Is(err, repository.ErrNoOpenSession) {
				return NotFound("branch %s has no open till session", req.BranchID)
			}
			return Persistence(err, "load open session")
		}

		cashSales, err := s.sales.SumCashSales(ctx, req.BranchID, session.OpeningTime)
		if err != nil {
			return Persistence(err, "aggregate sales")
		}
		cashRefunds, err := s.sales.SumCashRefunds(ctx, req.BranchID, session.OpeningTime)
		if err != nil {
			return Persistence(err, "aggregate refunds")
		}
		dropsTotal, err := s.drops.SumForSession(ctx, session.ID)
		if err != nil {
			return Persistence(err, "aggregate drops")
		}

		rec := Reconcile(session.OpeningAmount, cashSales, cashRefunds, SumExpenses(req.Expenses), dropsTotal, req.ClosingAmount)

		closed, err := s.sessions.Close(ctx, session.ID, repository.SessionClose{
			ClosedBy:       actor.ID,
			ClosingAmount:  rec.Actual,
			ClosingTime:    time.Now().UTC(),
			ExpectedAmount: rec.Expected,
			VarianceAmount: rec.Variance,
			Notes:          joinNotes(session.Notes, req.Notes),
		})
		if err != nil {
			if errors.Is(err, repository.ErrSessionAlreadyClosed) {
				return Conflict("till session %d is already closed", session.ID)
			}
			return Persistence(err, "close session")
		}

		result = &model.CloseResult{
			Session:  closed,
			Expected: rec.Expected,
			Actual:   rec.Actual,
			Variance: rec.Variance,
		}

		if !rec.Variance.IsZero() {
			vtype, amount := VarianceOf(rec.Variance)
			v, err := s.variances.Create(ctx, model.CreateVarianceRequest{
				SessionID:   closed.ID,
				BranchID:    req.BranchID,
				Type:        vtype,
				Amount:      amount,
				Category:    model.CategoryUnknown,
				Description: fmt.Sprintf("close-out variance: expected %s, counted %s", rec.Expected, rec.Actual),
			})
			if err != nil {
				return err
			}
			result.Case = v
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "close session")
	}

	prom.IncSessionClosed(req.BranchID)
	logger.Info("till session closed",
		"branch", req.BranchID,
		"session_id", result.Session.ID,
		"expected", result.Expected.String(),
		"actual", result.Actual.String(),
		"variance", result.Variance.String(),
	)
	return result, nil
}

func (s *TillService) ListSessions(ctx context.Context, f model.SessionFilter) ([]*model.TillSession, int64, error) {
	sessions, total, err := s.sessions.List(ctx, f)
	if err != nil {
		return nil, 0, Persistence(err, "list sessions")
	}
	return sessions, total, nil
}

// ListDrops returns the current session's drops, oldest first.
func (s *TillService) ListDrops(ctx context.Context, branchID string) ([]*model.CashDrop, error) {
	session, err := s.GetCurrentSession(ctx, branchID)
	if err != nil {
		return nil, err
	}
	drops, err := s.drops.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, Persistence(err, "list drops")
	}
	return drops, nil
}

func (s *TillService) cashInDrawer(ctx context.Context, session *model.TillSession) (decimal.Decimal, error) {
	cashSales, err := s.sales.SumCashSales(ctx, session.BranchID, session.OpeningTime)
	if err != nil {
		return decimal.Zero, Persistence(err, "aggregate sales")
	}
	cashRefunds, err := s.sales.SumCashRefunds(ctx, session.BranchID, session.OpeningTime)
	if err != nil {
		return decimal.Zero, Persistence(err, "aggregate refunds")
	}
	dropsTotal, err := s.drops.SumForSession(ctx, session.ID)
	if err != nil {
		return decimal.Zero, Persistence(err, "aggregate drops")
	}
	return session.OpeningAmount.Add(cashSales).Sub(cashRefunds).Sub(dropsTotal), nil
}

func joinNotes(existing, extra string) string {
	if extra == "" {
		return existing
	}
	if existing == "" {
		return extra
	}
	return existing + "\n" + extra
}

// asServiceError passes typed errors through and wraps anything else as a
// persistence failure.
func asServiceError(err error, op string) error {
	if KindOf(err) != KindUnknown {
		return err
	}
	return Persistence(err, "%s", op)
}
