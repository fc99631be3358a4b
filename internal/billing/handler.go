package billing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/balanca-pos/balanca/internal/platform/httpx"
)

// Handler serves the sales document API.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers sales routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.ListInvoices)
	r.Post("/invoices", h.CreateInvoice)
	r.Get("/invoices/{id}", h.GetInvoice)
	r.Put("/invoices/{id}", h.UpdateInvoice)
	r.Post("/invoices/{id}/post", h.PostInvoice)
	r.Post("/invoices/{id}/void", h.VoidInvoice)
	r.Get("/invoices/{id}/payments", h.ListPayments)
	r.Post("/payments", h.RegisterPayment)
	r.Post("/payments/{id}/post", h.PostPayment)
	r.Post("/payments/{id}/void", h.VoidPayment)
}

type invoiceLinePayload struct {
	Description string  `json:"description" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	DiscountPct float64 `json:"discount_pct" validate:"gte=0,lte=100"`
}

type invoicePayload struct {
	OutletID   *int64               `json:"outlet_id"`
	Number     string               `json:"number" validate:"required"`
	CustomerID int64                `json:"customer_id" validate:"required"`
	IssueDate  string               `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate    string               `json:"due_date" validate:"required,datetime=2006-01-02"`
	TaxAmount  float64              `json:"tax_amount" validate:"gte=0"`
	Memo       string               `json:"memo"`
	Lines      []invoiceLinePayload `json:"lines" validate:"required,min=1,dive"`
}

func (p invoicePayload) toLines() []InvoiceLineInput {
	lines := make([]InvoiceLineInput, 0, len(p.Lines))
	for _, l := range p.Lines {
		lines = append(lines, InvoiceLineInput{Description: l.Description, Qty: l.Qty, UnitPrice: l.UnitPrice, DiscountPct: l.DiscountPct})
	}
	return lines
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload invoicePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issueDate, _ := time.Parse("2006-01-02", payload.IssueDate)
	dueDate, _ := time.Parse("2006-01-02", payload.DueDate)
	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		CompanyID:  companyID,
		OutletID:   payload.OutletID,
		Number:     payload.Number,
		CustomerID: payload.CustomerID,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		TaxAmount:  payload.TaxAmount,
		Memo:       payload.Memo,
		Lines:      payload.toLines(),
	})
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "invoice": inv})
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	var payload invoicePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issueDate, _ := time.Parse("2006-01-02", payload.IssueDate)
	dueDate, _ := time.Parse("2006-01-02", payload.DueDate)
	inv, err := h.service.UpdateInvoice(r.Context(), UpdateInvoiceInput{
		CompanyID:  companyID,
		InvoiceID:  invoiceID,
		CustomerID: payload.CustomerID,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		TaxAmount:  payload.TaxAmount,
		Memo:       payload.Memo,
		Lines:      payload.toLines(),
	})
	if err != nil {
		h.logger.Error("update invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "invoice": inv})
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), companyID, invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "invoice": inv})
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := int(httpx.QueryInt64(r, "page", 1))
	perPage := int(httpx.QueryInt64(r, "per_page", 20))
	rows, pagination, err := h.service.ListInvoices(r.Context(), companyID, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": rows, "pagination": pagination})
}

type actorPayload struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) PostInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	inv, err := h.service.PostInvoice(r.Context(), companyID, invoiceID, payload.ActorID)
	if err != nil {
		h.logger.Error("post invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "invoice": inv})
}

func (h *Handler) VoidInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	inv, err := h.service.VoidInvoice(r.Context(), companyID, invoiceID, payload.ActorID)
	if err != nil {
		h.logger.Error("void invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "invoice": inv})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListPayments(r.Context(), companyID, invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "rows": rows})
}

type paymentPayload struct {
	InvoiceID int64   `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required"`
	PaidAt    string  `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Note      string  `json:"note"`
}

func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload paymentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var paidAt time.Time
	if payload.PaidAt != "" {
		paidAt, _ = time.Parse("2006-01-02", payload.PaidAt)
	}
	payment, err := h.service.RegisterPayment(r.Context(), RegisterPaymentInput{
		CompanyID: companyID,
		InvoiceID: payload.InvoiceID,
		Amount:    payload.Amount,
		Method:    payload.Method,
		PaidAt:    paidAt,
		Note:      payload.Note,
	})
	if err != nil {
		h.logger.Error("register payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "payment": payment})
}

func (h *Handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	companyID, paymentID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	payment, err := h.service.PostPayment(r.Context(), companyID, paymentID, payload.ActorID)
	if err != nil {
		h.logger.Error("post payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "payment": payment})
}

func (h *Handler) VoidPayment(w http.ResponseWriter, r *http.Request) {
	companyID, paymentID, ok := h.docScope(w, r)
	if !ok {
		return
	}
	var payload actorPayload
	_ = httpx.DecodeJSON(r, &payload)
	payment, err := h.service.VoidPayment(r.Context(), companyID, paymentID, payload.ActorID)
	if err != nil {
		h.logger.Error("void payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "payment": payment})
}

func (h *Handler) docScope(w http.ResponseWriter, r *http.Request) (companyID, docID int64, ok bool) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	docID, err = strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return 0, 0, false
	}
	return companyID, docID, true
}
