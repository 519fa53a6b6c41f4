package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/services"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockTillService struct {
	mock.Mock
}

func (m *MockTillService) OpenSession(ctx context.Context, req model.OpenSessionRequest) (*model.TillSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TillSession), args.Error(1)
}

func (m *MockTillService) CloseSession(ctx context.Context, req model.CloseSessionRequest) (*model.CloseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CloseResult), args.Error(1)
}

func (m *MockTillService) PerformCashDrop(ctx context.Context, req model.CashDropRequest) (*model.CashDrop, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashDrop), args.Error(1)
}

func (m *MockTillService) GetCurrentSession(ctx context.Context, branchID string) (*model.TillSession, error) {
	args := m.Called(ctx, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TillSession), args.Error(1)
}

func (m *MockTillService) GetTillSummary(ctx context.Context, branchID string) (*model.TillSummary, error) {
	args := m.Called(ctx, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TillSummary), args.Error(1)
}

func (m *MockTillService) ListSessions(ctx context.Context, f model.SessionFilter) ([]*model.TillSession, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.TillSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockTillService) ListDrops(ctx context.Context, branchID string) ([]*model.CashDrop, error) {
	args := m.Called(ctx, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CashDrop), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func asActor(ctx *xhttp.RequestCtx, actorID string) *xhttp.RequestCtx {
	ctx.Request.Header.Set("X-Actor-Id", actorID)
	return ctx
}

func withBranch(ctx *xhttp.RequestCtx, branch string) *xhttp.RequestCtx {
	ctx.SetUserValue("branch", branch)
	return ctx
}

func TestTillHandler_OpenSession(t *testing.T) {
	t.Run("successful open", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		bodyBytes, _ := json.Marshal(openSessionRequest{
			OpeningAmount: decimal.NewFromInt(1000),
			Notes:         "morning shift",
		})

		expected := &model.TillSession{
			ID:            7,
			BranchID:      "BR-001",
			OpenedBy:      "cashier-1",
			OpeningAmount: decimal.NewFromInt(1000),
			Status:        model.SessionStatusOpen,
		}

		svc.On("OpenSession", mock.Anything, mock.MatchedBy(func(req model.OpenSessionRequest) bool {
			return req.BranchID == "BR-001" && req.OpeningAmount.Equal(decimal.NewFromInt(1000))
		})).Return(expected, nil)

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/open", bodyBytes), "cashier-1"), "BR-001")
		handler.OpenSession(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.TillSession
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(7), response.ID)
		assert.Equal(t, model.SessionStatusOpen, response.Status)

		svc.AssertExpectations(t)
	})

	t.Run("missing actor header", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		ctx := withBranch(setupTestContext("POST", "/till/BR-001/open", []byte(`{}`)), "BR-001")
		handler.OpenSession(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "OpenSession")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/open", []byte("not json")), "cashier-1"), "BR-001")
		handler.OpenSession(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		svc.On("OpenSession", mock.Anything, mock.Anything).
			Return(nil, services.Conflict("branch BR-001 already has an open till session"))

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/open", []byte(`{"opening_amount":1000}`)), "cashier-1"), "BR-001")
		handler.OpenSession(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTillHandler_CloseSession(t *testing.T) {
	t.Run("successful close returns reconciliation", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		bodyBytes, _ := json.Marshal(closeSessionRequest{
			ClosingAmount: decimal.RequireFromString("3995.50"),
			Expenses: []model.ExpenseEntry{
				{Label: "courier", Amount: decimal.NewFromInt(20)},
			},
		})

		variance := decimal.RequireFromString("-4.50")
		expected := &model.CloseResult{
			Session:  &model.TillSession{ID: 7, BranchID: "BR-001", Status: model.SessionStatusClosed},
			Expected: decimal.NewFromInt(4000),
			Actual:   decimal.RequireFromString("3995.50"),
			Variance: variance,
			Case:     &model.CashVariance{ID: 3, VarianceType: model.VarianceShortage},
		}

		svc.On("CloseSession", mock.Anything, mock.MatchedBy(func(req model.CloseSessionRequest) bool {
			return req.BranchID == "BR-001" && len(req.Expenses) == 1
		})).Return(expected, nil)

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/close", bodyBytes), "cashier-1"), "BR-001")
		handler.CloseSession(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.CloseResult
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "-4.5", response.Variance.String())
		require.NotNil(t, response.Case)
		assert.Equal(t, model.VarianceShortage, response.Case.VarianceType)

		svc.AssertExpectations(t)
	})

	t.Run("no open session maps to 404", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		svc.On("CloseSession", mock.Anything, mock.Anything).
			Return(nil, services.NotFound("branch BR-001 has no open till session"))

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/close", []byte(`{"closing_amount":100}`)), "cashier-1"), "BR-001")
		handler.CloseSession(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTillHandler_PerformCashDrop(t *testing.T) {
	t.Run("successful drop", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		bodyBytes, _ := json.Marshal(cashDropRequest{
			Amount: decimal.NewFromInt(500),
			Reason: "till limit reached",
		})

		expected := &model.CashDrop{ID: 1, SessionID: 7, BranchID: "BR-001", Amount: decimal.NewFromInt(500)}

		svc.On("PerformCashDrop", mock.Anything, mock.MatchedBy(func(req model.CashDropRequest) bool {
			return req.BranchID == "BR-001" && req.Amount.Equal(decimal.NewFromInt(500)) && req.Reason == "till limit reached"
		})).Return(expected, nil)

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/drops", bodyBytes), "cashier-1"), "BR-001")
		handler.PerformCashDrop(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		svc.On("PerformCashDrop", mock.Anything, mock.Anything).
			Return(nil, services.Validation("drop amount 900 exceeds cash in drawer 500"))

		ctx := withBranch(asActor(setupTestContext("POST", "/till/BR-001/drops", []byte(`{"amount":900,"reason":"x"}`)), "cashier-1"), "BR-001")
		handler.PerformCashDrop(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTillHandler_GetTillSummary(t *testing.T) {
	t.Run("successful summary", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		expected := &model.TillSummary{
			BranchID:      "BR-001",
			SessionID:     7,
			OpeningAmount: decimal.NewFromInt(1000),
			SalesTotal:    decimal.NewFromInt(4700),
			CurrentAmount: decimal.NewFromInt(4000),
		}

		svc.On("GetTillSummary", mock.Anything, "BR-001").Return(expected, nil)

		ctx := withBranch(setupTestContext("GET", "/till/BR-001/summary", nil), "BR-001")
		handler.GetTillSummary(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.TillSummary
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "4000", response.CurrentAmount.String())

		svc.AssertExpectations(t)
	})

	t.Run("no open session maps to 404", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		svc.On("GetTillSummary", mock.Anything, "BR-002").
			Return(nil, services.NotFound("branch BR-002 has no open till session"))

		ctx := withBranch(setupTestContext("GET", "/till/BR-002/summary", nil), "BR-002")
		handler.GetTillSummary(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestTillHandler_ListSessions(t *testing.T) {
	t.Run("filters parsed from query", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		svc.On("ListSessions", mock.Anything, mock.MatchedBy(func(f model.SessionFilter) bool {
			return f.BranchID == "BR-001" &&
				f.Status == model.SessionStatusClosed &&
				f.Limit == 5 && f.Offset == 10 && f.Desc
		})).Return([]*model.TillSession{}, int64(0), nil)

		ctx := withBranch(setupTestContext("GET", "/till/BR-001/sessions?status=closed&limit=5&offset=10&order=desc", nil), "BR-001")
		handler.ListSessions(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("time range parsed", func(t *testing.T) {
		svc := new(MockTillService)
		handler := NewTillHandler(svc)

		svc.On("ListSessions", mock.Anything, mock.MatchedBy(func(f model.SessionFilter) bool {
			return f.From != nil && f.To != nil
		})).Return([]*model.TillSession{}, int64(0), nil)

		ctx := withBranch(setupTestContext("GET", "/till/BR-001/sessions?from=2025-01-01&to=2025-12-31", nil), "BR-001")
		handler.ListSessions(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("writeServiceError maps kinds", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
		}{
			{services.Validation("bad input"), 400},
			{services.NotFound("missing"), 404},
			{services.Conflict("busy"), 409},
			{services.Persistence(assert.AnError, "db down"), 500},
			{assert.AnError, 500},
		}
		for _, c := range cases {
			ctx := setupTestContext("GET", "/", nil)
			writeServiceError(ctx, c.err)
			assert.Equal(t, c.status, ctx.Response.StatusCode())
		}
	})

	t.Run("actorContext requires header", func(t *testing.T) {
		ctx := setupTestContext("POST", "/", nil)
		_, ok := actorContext(ctx)
		assert.False(t, ok)

		actx, ok := actorContext(asActor(setupTestContext("POST", "/", nil), "mgr-1"))
		require.True(t, ok)
		actor, found := model.ActorFromContext(actx)
		require.True(t, found)
		assert.Equal(t, "mgr-1", actor.ID)
	})

	t.Run("parseTime RFC3339 and date only", func(t *testing.T) {
		parsed, err := parseTime("2025-06-01T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2025, parsed.Year())

		parsed, err = parseTime("2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, time.Month(6), parsed.Month())

		_, err = parseTime("nonsense")
		assert.Error(t, err)
	})
}
