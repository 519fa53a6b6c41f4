package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/services"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/shopspring/decimal"
)

type VarianceService interface {
	Create(ctx context.Context, req model.CreateVarianceRequest) (*model.CashVariance, error)
	Get(ctx context.Context, id int64) (*model.CashVariance, error)
	List(ctx context.Context, f model.VarianceFilter) ([]*model.CashVariance, int64, error)
	Stats(ctx context.Context, f model.VarianceFilter) (*model.VarianceStats, error)
	Actions(ctx context.Context, id int64) ([]*model.VarianceAction, error)
	Investigate(ctx context.Context, id int64, req services.InvestigateRequest) (*model.CashVariance, error)
	Resolve(ctx context.Context, id int64, req services.ResolveRequest) (*model.CashVariance, error)
	Approve(ctx context.Context, id int64, req services.ApproveRequest) (*model.CashVariance, error)
	Update(ctx context.Context, id int64, req model.UpdateVarianceRequest) (*model.CashVariance, error)
	AddComment(ctx context.Context, id int64, comment string) (*model.VarianceAction, error)
}

type VarianceHandler struct {
	svc VarianceService
}

func RegisterVarianceRoutes(e *router.Group, h *VarianceHandler) {
	e.POST("/variances", h.Create)
	e.GET("/variances", h.List)
	e.GET("/variances/stats", h.Stats)
	e.GET("/variances/{id}", h.Get)
	e.PATCH("/variances/{id}", h.Update)
	e.GET("/variances/{id}/actions", h.Actions)
	e.POST("/variances/{id}/investigate", h.Investigate)
	e.POST("/variances/{id}/resolve", h.Resolve)
	e.POST("/variances/{id}/approve", h.Approve)
	e.POST("/variances/{id}/comments", h.AddComment)
}

func NewVarianceHandler(varianceService VarianceService) *VarianceHandler {
	return &VarianceHandler{
		svc: varianceService,
	}
}

type createVarianceRequest struct {
	SessionID   int64           `json:"session_id"`
	BranchID    string          `json:"branch_id"`
	Type        string          `json:"variance_type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

type investigateRequest struct {
	Notes string `json:"notes"`
}

type resolveRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type approveRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

type updateVarianceRequest struct {
	Category           *string `json:"category"`
	Description        *string `json:"description"`
	InvestigationNotes *string `json:"investigation_notes"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type varianceListResponse struct {
	Items []*model.CashVariance `json:"items"`
	Total int64                 `json:"total"`
}

type actionListResponse struct {
	Items []*model.VarianceAction `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *VarianceHandler) Create(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}

	var req createVarianceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	v, err := h.svc.Create(actx, model.CreateVarianceRequest{
		SessionID:   req.SessionID,
		BranchID:    req.BranchID,
		Type:        model.VarianceType(strings.ToUpper(req.Type)),
		Amount:      req.Amount,
		Category:    model.VarianceCategory(req.Category),
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, v)
}

func (h *VarianceHandler) Get(ctx *xhttp.RequestCtx) {
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}
	v, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, v)
}

func (h *VarianceHandler) List(ctx *xhttp.RequestCtx) {
	f, err := varianceFilter(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	cases, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, varianceListResponse{Items: cases, Total: total})
}

func (h *VarianceHandler) Stats(ctx *xhttp.RequestCtx) {
	f, err := varianceFilter(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	stats, err := h.svc.Stats(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, stats)
}

func (h *VarianceHandler) Actions(ctx *xhttp.RequestCtx) {
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}
	actions, err := h.svc.Actions(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, actionListResponse{Items: actions})
}

func (h *VarianceHandler) Investigate(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}

	var req investigateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	v, err := h.svc.Investigate(actx, id, services.InvestigateRequest{Notes: req.Notes})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, v)
}

func (h *VarianceHandler) Resolve(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}

	var req resolveRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	v, err := h.svc.Resolve(actx, id, services.ResolveRequest{
		Status: model.ResolutionStatus(strings.ToUpper(req.Status)),
		Notes:  req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, v)
}

func (h *VarianceHandler) Approve(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}

	var req approveRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	v, err := h.svc.Approve(actx, id, services.ApproveRequest{Approved: req.Approved, Notes: req.Notes})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, v)
}

func (h *VarianceHandler) Update(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}

	var req updateVarianceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	patch := model.UpdateVarianceRequest{
		Description:        req.Description,
		InvestigationNotes: req.InvestigationNotes,
	}
	if req.Category != nil {
		c := model.VarianceCategory(*req.Category)
		patch.Category = &c
	}

	v, err := h.svc.Update(actx, id, patch)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, v)
}

func (h *VarianceHandler) AddComment(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid case id")
		return
	}

	var req commentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	action, err := h.svc.AddComment(actx, id, req.Comment)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, action)
}

func varianceFilter(ctx *xhttp.RequestCtx) (model.VarianceFilter, error) {
	var f model.VarianceFilter

	f.BranchID = query(ctx, "branch_id")
	if v := query(ctx, "session_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.SessionID = id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.ResolutionStatus(strings.ToUpper(parts[i])))
			}
		}
	}
	if v := query(ctx, "type"); v != "" {
		f.Type = model.VarianceType(strings.ToUpper(v))
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	return f, nil
}
