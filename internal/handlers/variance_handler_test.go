package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/services"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVarianceService struct {
	mock.Mock
}

func (m *MockVarianceService) Create(ctx context.Context, req model.CreateVarianceRequest) (*model.CashVariance, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashVariance), args.Error(1)
}

func (m *MockVarianceService) Get(ctx context.Context, id int64) (*model.CashVariance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashVariance), args.Error(1)
}

func (m *MockVarianceService) List(ctx context.Context, f model.VarianceFilter) ([]*model.CashVariance, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.CashVariance), args.Get(1).(int64), args.Error(2)
}

func (m *MockVarianceService) Stats(ctx context.Context, f model.VarianceFilter) (*model.VarianceStats, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VarianceStats), args.Error(1)
}

func (m *MockVarianceService) Actions(ctx context.Context, id int64) ([]*model.VarianceAction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.VarianceAction), args.Error(1)
}

func (m *MockVarianceService) Investigate(ctx context.Context, id int64, req services.InvestigateRequest) (*model.CashVariance, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashVariance), args.Error(1)
}

func (m *MockVarianceService) Resolve(ctx context.Context, id int64, req services.ResolveRequest) (*model.CashVariance, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashVariance), args.Error(1)
}

func (m *MockVarianceService) Approve(ctx context.Context, id int64, req services.ApproveRequest) (*model.CashVariance, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashVariance), args.Error(1)
}

func (m *MockVarianceService) Update(ctx context.Context, id int64, req model.UpdateVarianceRequest) (*model.CashVariance, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CashVariance), args.Error(1)
}

func (m *MockVarianceService) AddComment(ctx context.Context, id int64, comment string) (*model.VarianceAction, error) {
	args := m.Called(ctx, id, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VarianceAction), args.Error(1)
}

func withID(ctx *xhttp.RequestCtx, id string) *xhttp.RequestCtx {
	ctx.SetUserValue("id", id)
	return ctx
}

func TestVarianceHandler_Create(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		bodyBytes, _ := json.Marshal(createVarianceRequest{
			SessionID:   7,
			BranchID:    "BR-001",
			Type:        "shortage",
			Amount:      decimal.RequireFromString("4.50"),
			Category:    "counting_error",
			Description: "drawer short at close",
		})

		expected := &model.CashVariance{
			ID:               3,
			SessionID:        7,
			BranchID:         "BR-001",
			VarianceType:     model.VarianceShortage,
			Amount:           decimal.RequireFromString("4.50"),
			ResolutionStatus: model.StatusPending,
		}

		svc.On("Create", mock.Anything, mock.MatchedBy(func(req model.CreateVarianceRequest) bool {
			return req.Type == model.VarianceShortage && req.Category == model.CategoryCountingError
		})).Return(expected, nil)

		ctx := asActor(setupTestContext("POST", "/variances", bodyBytes), "cashier-1")
		handler.Create(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.CashVariance
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, response.ResolutionStatus)

		svc.AssertExpectations(t)
	})

	t.Run("missing actor header", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		ctx := setupTestContext("POST", "/variances", []byte(`{}`))
		handler.Create(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Create")
	})
}

func TestVarianceHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("Get", mock.Anything, int64(3)).Return(&model.CashVariance{ID: 3}, nil)

		ctx := withID(setupTestContext("GET", "/variances/3", nil), "3")
		handler.Get(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("Get", mock.Anything, int64(99)).
			Return(nil, services.NotFound("variance case 99 not found"))

		ctx := withID(setupTestContext("GET", "/variances/99", nil), "99")
		handler.Get(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("bad id", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		ctx := withID(setupTestContext("GET", "/variances/abc", nil), "abc")
		handler.Get(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Get")
	})
}

func TestVarianceHandler_List(t *testing.T) {
	t.Run("filters parsed from query", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.VarianceFilter) bool {
			return f.BranchID == "BR-001" &&
				len(f.Statuses) == 2 &&
				f.Statuses[0] == model.StatusPending &&
				f.Type == model.VarianceShortage &&
				f.Limit == 20
		})).Return([]*model.CashVariance{}, int64(0), nil)

		ctx := setupTestContext("GET", "/variances?branch_id=BR-001&status=pending,investigating&type=shortage&limit=20", nil)
		handler.List(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestVarianceHandler_Workflow(t *testing.T) {
	t.Run("investigate", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("Investigate", mock.Anything, int64(3), services.InvestigateRequest{Notes: "recount scheduled"}).
			Return(&model.CashVariance{ID: 3, ResolutionStatus: model.StatusInvestigating}, nil)

		ctx := withID(asActor(setupTestContext("POST", "/variances/3/investigate", []byte(`{"notes":"recount scheduled"}`)), "mgr-1"), "3")
		handler.Investigate(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("resolve uppercases status", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("Resolve", mock.Anything, int64(3), services.ResolveRequest{Status: model.StatusResolved, Notes: "found receipt"}).
			Return(&model.CashVariance{ID: 3, ResolutionStatus: model.StatusResolved}, nil)

		ctx := withID(asActor(setupTestContext("POST", "/variances/3/resolve", []byte(`{"status":"resolved","notes":"found receipt"}`)), "mgr-1"), "3")
		handler.Resolve(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("approve on terminal case maps to 409", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("Approve", mock.Anything, int64(3), mock.Anything).
			Return(nil, services.Conflict("variance case 3 is already RESOLVED"))

		ctx := withID(asActor(setupTestContext("POST", "/variances/3/approve", []byte(`{"approved":true}`)), "mgr-1"), "3")
		handler.Approve(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("comment", func(t *testing.T) {
		svc := new(MockVarianceService)
		handler := NewVarianceHandler(svc)

		svc.On("AddComment", mock.Anything, int64(3), "checked cameras").
			Return(&model.VarianceAction{ID: 9, VarianceID: 3, ActionType: model.ActionCommentAdded}, nil)

		ctx := withID(asActor(setupTestContext("POST", "/variances/3/comments", []byte(`{"comment":"checked cameras"}`)), "mgr-1"), "3")
		handler.AddComment(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestVarianceHandler_Update(t *testing.T) {
	svc := new(MockVarianceService)
	handler := NewVarianceHandler(svc)

	svc.On("Update", mock.Anything, int64(3), mock.MatchedBy(func(req model.UpdateVarianceRequest) bool {
		return req.Category != nil && *req.Category == model.CategoryWrongChangeGiven
	})).Return(&model.CashVariance{ID: 3, Category: model.CategoryWrongChangeGiven}, nil)

	ctx := withID(asActor(setupTestContext("PATCH", "/variances/3", []byte(`{"category":"wrong_change_given"}`)), "mgr-1"), "3")
	handler.Update(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}
