package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/services"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/shopspring/decimal"
)

type TillService interface {
	OpenSession(ctx context.Context, req model.OpenSessionRequest) (*model.TillSession, error)
	CloseSession(ctx context.Context, req model.CloseSessionRequest) (*model.CloseResult, error)
	PerformCashDrop(ctx context.Context, req model.CashDropRequest) (*model.CashDrop, error)
	GetCurrentSession(ctx context.Context, branchID string) (*model.TillSession, error)
	GetTillSummary(ctx context.Context, branchID string) (*model.TillSummary, error)
	ListSessions(ctx context.Context, f model.SessionFilter) ([]*model.TillSession, int64, error)
	ListDrops(ctx context.Context, branchID string) ([]*model.CashDrop, error)
}

type TillHandler struct {
	svc TillService
}

func RegisterTillRoutes(e *router.Group, h *TillHandler) {
	e.POST("/till/{branch}/open", h.OpenSession)
	e.POST("/till/{branch}/close", h.CloseSession)
	e.POST("/till/{branch}/drops", h.PerformCashDrop)
	e.GET("/till/{branch}/drops", h.ListDrops)
	e.GET("/till/{branch}/session", h.GetCurrentSession)
	e.GET("/till/{branch}/summary", h.GetTillSummary)
	e.GET("/till/{branch}/sessions", h.ListSessions)
}

func NewTillHandler(tillService TillService) *TillHandler {
	return &TillHandler{
		svc: tillService,
	}
}

type openSessionRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	Notes         string          `json:"notes"`
}

type closeSessionRequest struct {
	ClosingAmount decimal.Decimal      `json:"closing_amount"`
	Expenses      []model.ExpenseEntry `json:"expenses"`
	Notes         string               `json:"notes"`
}

type cashDropRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type sessionListResponse struct {
	Items []*model.TillSession `json:"items"`
	Total int64                `json:"total"`
}

type dropListResponse struct {
	Items []*model.CashDrop `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TillHandler) OpenSession(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}

	var req openSessionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	session, err := h.svc.OpenSession(actx, model.OpenSessionRequest{
		BranchID:      param(ctx, "branch"),
		OpeningAmount: req.OpeningAmount,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, session)
}

func (h *TillHandler) CloseSession(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}

	var req closeSessionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.CloseSession(actx, model.CloseSessionRequest{
		BranchID:      param(ctx, "branch"),
		ClosingAmount: req.ClosingAmount,
		Expenses:      req.Expenses,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, result)
}

func (h *TillHandler) PerformCashDrop(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}

	var req cashDropRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	drop, err := h.svc.PerformCashDrop(actx, model.CashDropRequest{
		BranchID: param(ctx, "branch"),
		Amount:   req.Amount,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, drop)
}

func (h *TillHandler) GetCurrentSession(ctx *xhttp.RequestCtx) {
	session, err := h.svc.GetCurrentSession(ctx, param(ctx, "branch"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, session)
}

func (h *TillHandler) GetTillSummary(ctx *xhttp.RequestCtx) {
	summary, err := h.svc.GetTillSummary(ctx, param(ctx, "branch"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, summary)
}

func (h *TillHandler) ListDrops(ctx *xhttp.RequestCtx) {
	drops, err := h.svc.ListDrops(ctx, param(ctx, "branch"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, dropListResponse{Items: drops})
}

func (h *TillHandler) ListSessions(ctx *xhttp.RequestCtx) {
	f := model.SessionFilter{
		BranchID: param(ctx, "branch"),
	}

	if v := query(ctx, "status"); v != "" {
		f.Status = model.SessionStatus(strings.ToUpper(v))
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
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	sessions, total, err := h.svc.ListSessions(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, sessionListResponse{Items: sessions, Total: total})
}

/* -------------------------------- Helpers ------------------------------------ */

// actorContext lifts the acting user from the X-Actor-Id header into the
// request context. Mutating routes refuse requests without it.
func actorContext(ctx *xhttp.RequestCtx) (context.Context, bool) {
	id := string(ctx.Request.Header.Peek("X-Actor-Id"))
	if id == "" {
		return ctx, false
	}
	return model.WithActor(ctx, model.Actor{ID: id}), true
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error kind onto a response code.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch services.KindOf(err) {
	case services.KindValidation:
		writeError(ctx, 400, err.Error())
	case services.KindNotFound:
		writeError(ctx, 404, err.Error())
	case services.KindConflict:
		writeError(ctx, 409, err.Error())
	default:
		writeError(ctx, 500, err.Error())
	}
}

func param(ctx *xhttp.RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}

func paramInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	return strconv.ParseInt(param(ctx, name), 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
