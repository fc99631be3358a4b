package depreciation

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/balanca-pos/balanca/internal/platform/httpx"
)

// Handler serves the depreciation API.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the depreciation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers depreciation routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.Run)
	r.Get("/plans", h.ListPlans)
	r.Post("/plans", h.CreatePlan)
	r.Get("/plans/{id}", h.GetPlan)
	r.Post("/plans/{id}/activate", h.ActivatePlan)
	r.Post("/plans/{id}/void", h.VoidPlan)
	r.Get("/plans/{id}/schedule", h.Schedule)
	r.Get("/plans/{id}/runs", h.ListRuns)
	r.Post("/runs/{id}/void", h.VoidRun)
}

type runPayload struct {
	PlanID      int64 `json:"plan_id" validate:"required"`
	PeriodYear  int   `json:"period_year" validate:"required,gte=1900"`
	PeriodMonth int   `json:"period_month" validate:"required,gte=1,lte=12"`
	ActorID     int64 `json:"actor_id"`
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload runPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.RunPeriod(r.Context(), RunPeriodInput{
		CompanyID:   companyID,
		PlanID:      payload.PlanID,
		PeriodYear:  payload.PeriodYear,
		PeriodMonth: payload.PeriodMonth,
		ActorID:     payload.ActorID,
	})
	if err != nil {
		h.logger.Error("run depreciation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	httpx.JSON(w, status, map[string]any{"ok": true, "duplicate": result.Duplicate, "run": result.Run})
}

type planPayload struct {
	AssetID            int64   `json:"asset_id" validate:"required"`
	Method             string  `json:"method" validate:"required,oneof=STRAIGHT_LINE DECLINING_BALANCE SUM_OF_YEARS"`
	StartDate          string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	UsefulLifeMonths   int     `json:"useful_life_months" validate:"required,gt=0"`
	SalvageValue       float64 `json:"salvage_value" validate:"gte=0"`
	PurchaseCost       float64 `json:"purchase_cost" validate:"required,gt=0"`
	ExpenseAccountID   int64   `json:"expense_account_id" validate:"required"`
	AccumDeprAccountID int64   `json:"accum_depr_account_id" validate:"required"`
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload planPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	startDate, _ := time.Parse("2006-01-02", payload.StartDate)
	plan, err := h.service.CreatePlan(r.Context(), CreatePlanInput{
		CompanyID:          companyID,
		AssetID:            payload.AssetID,
		Method:             Method(payload.Method),
		StartDate:          startDate,
		UsefulLifeMonths:   payload.UsefulLifeMonths,
		SalvageValue:       payload.SalvageValue,
		PurchaseCost:       payload.PurchaseCost,
		ExpenseAccountID:   payload.ExpenseAccountID,
		AccumDeprAccountID: payload.AccumDeprAccountID,
	})
	if err != nil {
		h.logger.Error("create depreciation plan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "plan": plan})
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	plans, err := h.service.ListPlans(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": plans})
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	companyID, planID, ok := h.planScope(w, r)
	if !ok {
		return
	}
	plan, err := h.service.GetPlan(r.Context(), companyID, planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "plan": plan})
}

type actorPayload struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) ActivatePlan(w http.ResponseWriter, r *http.Request) {
	companyID, planID, ok := h.planScope(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	plan, err := h.service.ActivatePlan(r.Context(), companyID, planID, payload.ActorID)
	if err != nil {
		h.logger.Error("activate depreciation plan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "plan": plan})
}

func (h *Handler) VoidPlan(w http.ResponseWriter, r *http.Request) {
	companyID, planID, ok := h.planScope(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	plan, err := h.service.VoidPlan(r.Context(), companyID, planID, payload.ActorID)
	if err != nil {
		h.logger.Error("void depreciation plan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "plan": plan})
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	companyID, planID, ok := h.planScope(w, r)
	if !ok {
		return
	}
	schedule, err := h.service.SchedulePreview(r.Context(), companyID, planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": schedule})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	companyID, planID, ok := h.planScope(w, r)
	if !ok {
		return
	}
	runs, err := h.service.ListRuns(r.Context(), companyID, planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": runs})
}

func (h *Handler) VoidRun(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	runID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid run id")
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	run, err := h.service.VoidRun(r.Context(), companyID, runID, payload.ActorID)
	if err != nil {
		h.logger.Error("void depreciation run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "run": run})
}

func (h *Handler) planScope(w http.ResponseWriter, r *http.Request) (companyID, planID int64, ok bool) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	planID, err = strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid plan id")
		return 0, 0, false
	}
	return companyID, planID, true
}
