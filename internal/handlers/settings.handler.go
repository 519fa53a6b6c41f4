package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/retailcore/till-service/internal/model"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/shopspring/decimal"
)

type SettingsService interface {
	Get(ctx context.Context, branchID string) (*model.TillSettings, error)
	Update(ctx context.Context, branchID string, patch model.TillSettingsPatch) (*model.TillSettings, error)
	UpdateKey(ctx context.Context, branchID, key, value string) (*model.TillSettings, error)
}

type SettingsHandler struct {
	svc SettingsService
}

func RegisterSettingsRoutes(e *router.Group, h *SettingsHandler) {
	e.GET("/till/{branch}/settings", h.GetSettings)
	e.PUT("/till/{branch}/settings", h.UpdateSettings)
	e.PUT("/till/{branch}/settings/{key}", h.UpdateSetting)
}

func NewSettingsHandler(settingsService SettingsService) *SettingsHandler {
	return &SettingsHandler{
		svc: settingsService,
	}
}

type updateSettingsRequest struct {
	TillCashManagementEnabled *bool            `json:"till_cash_management_enabled"`
	AutoCashDropsEnabled      *bool            `json:"auto_cash_drops_enabled"`
	TillCountRemindersEnabled *bool            `json:"till_count_reminders_enabled"`
	VarianceAlertsEnabled     *bool            `json:"variance_alerts_enabled"`
	MaxTillAmount             *decimal.Decimal `json:"max_till_amount"`
	MinTillAmount             *decimal.Decimal `json:"min_till_amount"`
	VarianceThreshold         *decimal.Decimal `json:"variance_threshold"`
}

func (h *SettingsHandler) GetSettings(ctx *xhttp.RequestCtx) {
	settings, err := h.svc.Get(ctx, param(ctx, "branch"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settings)
}

func (h *SettingsHandler) UpdateSettings(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}

	var req updateSettingsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	settings, err := h.svc.Update(actx, param(ctx, "branch"), model.TillSettingsPatch{
		TillCashManagementEnabled: req.TillCashManagementEnabled,
		AutoCashDropsEnabled:      req.AutoCashDropsEnabled,
		TillCountRemindersEnabled: req.TillCountRemindersEnabled,
		VarianceAlertsEnabled:     req.VarianceAlertsEnabled,
		MaxTillAmount:             req.MaxTillAmount,
		MinTillAmount:             req.MinTillAmount,
		VarianceThreshold:         req.VarianceThreshold,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settings)
}

type updateSettingRequest struct {
	Value string `json:"value"`
}

// UpdateSetting changes one named setting, e.g.
// PUT /till/BR-001/settings/variance_threshold {"value": "25.50"}.
func (h *SettingsHandler) UpdateSetting(ctx *xhttp.RequestCtx) {
	actx, ok := actorContext(ctx)
	if !ok {
		writeError(ctx, 401, "X-Actor-Id header is required")
		return
	}

	var req updateSettingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	settings, err := h.svc.UpdateKey(actx, param(ctx, "branch"), param(ctx, "key"), req.Value)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settings)
}
