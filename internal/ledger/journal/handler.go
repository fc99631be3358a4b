package journal

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/platform/httpx"
)

const docTypeManual = "MANUAL_JOURNAL"

// Handler serves the manual journal API.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the journal handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers journal routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/void", h.Void)
	r.Post("/{id}/reverse", h.Reverse)
}

type postLinePayload struct {
	AccountID   int64   `json:"account_id" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
}

type postPayload struct {
	OutletID *int64            `json:"outlet_id"`
	DocID    string            `json:"doc_id" validate:"required,uuid4"`
	Memo     string            `json:"memo"`
	PostedBy int64             `json:"posted_by"`
	Lines    []postLinePayload `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload postPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	docID, err := uuid.Parse(payload.DocID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid doc id")
		return
	}
	lines := make([]PostingLineInput, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		lines = append(lines, PostingLineInput{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
	}
	batch, err := h.service.Post(r.Context(), PostingInput{
		CompanyID: companyID,
		OutletID:  payload.OutletID,
		DocType:   docTypeManual,
		DocID:     docID,
		Memo:      payload.Memo,
		PostedBy:  payload.PostedBy,
		Lines:     lines,
	})
	if err != nil {
		h.logger.Error("post journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "batch": batch})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := int(httpx.QueryInt64(r, "page", 1))
	perPage := int(httpx.QueryInt64(r, "per_page", 20))
	batches, pagination, err := h.service.List(r.Context(), companyID, page, perPage)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": batches, "pagination": pagination})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), companyID, batchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "batch": batch})
}

type actionPayload struct {
	ActorID int64  `json:"actor_id"`
	Reason  string `json:"reason"`
	Memo    string `json:"memo"`
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	var payload actionPayload
	_ = httpx.DecodeJSON(r, &payload)
	batch, err := h.service.Void(r.Context(), VoidInput{
		CompanyID: companyID,
		BatchID:   batchID,
		ActorID:   payload.ActorID,
		Reason:    payload.Reason,
	})
	if err != nil {
		h.logger.Error("void journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "batch": batch})
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	var payload actionPayload
	_ = httpx.DecodeJSON(r, &payload)
	batch, err := h.service.Reverse(r.Context(), ReverseInput{
		CompanyID: companyID,
		BatchID:   batchID,
		ActorID:   payload.ActorID,
		Memo:      payload.Memo,
	})
	if err != nil {
		h.logger.Error("reverse journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "batch": batch})
}
