package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/balanca-pos/balanca/internal/platform/httpx"
)

// Handler serves the chart of accounts API.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers account routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/deactivate", h.Deactivate)
}

type accountPayload struct {
	Code          string `json:"code" validate:"required"`
	Name          string `json:"name" validate:"required"`
	ParentID      *int64 `json:"parent_account_id"`
	IsGroup       bool   `json:"is_group"`
	Type          string `json:"account_type" validate:"required"`
	NormalBalance string `json:"normal_balance" validate:"required,oneof=DEBIT CREDIT"`
	ReportGroup   string `json:"report_group" validate:"required,oneof=BALANCE_SHEET PROFIT_LOSS"`
	IsPayable     bool   `json:"is_payable"`
}

type accountResponse struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	ParentID      *int64 `json:"parent_account_id,omitempty"`
	IsGroup       bool   `json:"is_group"`
	Type          string `json:"account_type"`
	NormalBalance string `json:"normal_balance"`
	ReportGroup   string `json:"report_group"`
	IsPayable     bool   `json:"is_payable"`
	IsActive      bool   `json:"is_active"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Code:          a.Code,
		Name:          a.Name,
		ParentID:      a.ParentID,
		IsGroup:       a.IsGroup,
		Type:          string(a.Type),
		NormalBalance: string(a.NormalBalance),
		ReportGroup:   string(a.ReportGroup),
		IsPayable:     a.IsPayable,
		IsActive:      a.IsActive,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := make([]accountResponse, 0, len(list))
	for _, a := range list {
		rows = append(rows, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": rows})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload accountPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.Create(r.Context(), CreateAccountInput{
		CompanyID:     companyID,
		Code:          payload.Code,
		Name:          payload.Name,
		ParentID:      payload.ParentID,
		IsGroup:       payload.IsGroup,
		Type:          AccountType(payload.Type),
		NormalBalance: NormalBalance(payload.NormalBalance),
		ReportGroup:   ReportGroup(payload.ReportGroup),
		IsPayable:     payload.IsPayable,
	})
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "account": toAccountResponse(account)})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	var payload accountPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.Update(r.Context(), UpdateAccountInput{
		CompanyID:     companyID,
		AccountID:     accountID,
		Code:          payload.Code,
		Name:          payload.Name,
		Type:          AccountType(payload.Type),
		NormalBalance: NormalBalance(payload.NormalBalance),
		ReportGroup:   ReportGroup(payload.ReportGroup),
		IsPayable:     payload.IsPayable,
	})
	if err != nil {
		h.logger.Error("update account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "account": toAccountResponse(account)})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	if err := h.service.Deactivate(r.Context(), companyID, accountID); err != nil {
		h.logger.Error("deactivate account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
