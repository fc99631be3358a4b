package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/balanca-pos/balanca/internal/platform/httpx"
	"github.com/balanca-pos/balanca/internal/shared"
)

// Handler serves the report API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers report routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/general-ledger", h.GeneralLedger)
	r.Get("/general-ledger.csv", h.GeneralLedgerCSV)
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/trial-balance.csv", h.TrialBalanceCSV)
	r.Get("/worksheet", h.Worksheet)
	r.Get("/worksheet.csv", h.WorksheetCSV)
}

func parseQuery(r *http.Request) (Query, error) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		return Query{}, err
	}
	q := Query{CompanyID: companyID}
	vals := r.URL.Query()
	for _, raw := range strings.Split(vals.Get("outlet_id"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Query{}, shared.E(shared.ErrValidation, "reports: invalid outlet id")
		}
		q.OutletIDs = append(q.OutletIDs, id)
	}
	q.DateFrom, err = parseDate(vals.Get("date_from"), time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return Query{}, err
	}
	// Balance-style reports take as_of; it is the same bound as date_to.
	rawTo := vals.Get("date_to")
	if rawTo == "" {
		rawTo = vals.Get("as_of")
	}
	q.DateTo, err = parseDate(rawTo, time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		return Query{}, err
	}
	q.Round = int32(httpx.QueryInt64(r, "round", int64(defaultRound)))
	return q, nil
}

func parseDate(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.E(shared.ErrValidation, "reports: invalid date, expected YYYY-MM-DD")
	}
	return t, nil
}

func (h *Handler) generalLedgerQuery(r *http.Request) (GLQuery, error) {
	base, err := parseQuery(r)
	if err != nil {
		return GLQuery{}, err
	}
	return GLQuery{
		Query:      base,
		AccountID:  httpx.QueryInt64(r, "account_id", 0),
		LineLimit:  int(httpx.QueryInt64(r, "line_limit", 100)),
		LineOffset: int(httpx.QueryInt64(r, "line_offset", 0)),
	}, nil
}

func (h *Handler) GeneralLedger(w http.ResponseWriter, r *http.Request) {
	q, err := h.generalLedgerQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.GeneralLedger(r.Context(), q)
	if err != nil {
		h.logger.Error("general ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "report": report, "rows": report.Lines})
}

func (h *Handler) GeneralLedgerCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.generalLedgerQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.GeneralLedger(r.Context(), q)
	if err != nil {
		h.logger.Error("general ledger csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="general-ledger.csv"`)
	if err := WriteGeneralLedgerCSV(w, report); err != nil {
		h.logger.Error("stream general ledger csv", slog.Any("error", err))
	}
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), q)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "totals": report.Totals, "rows": report.Rows})
}

func (h *Handler) TrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), q)
	if err != nil {
		h.logger.Error("trial balance csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	if err := WriteTrialBalanceCSV(w, report); err != nil {
		h.logger.Error("stream trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) Worksheet(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Worksheet(r.Context(), q)
	if err != nil {
		h.logger.Error("worksheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "summary": report.Summary, "rows": report.Rows})
}

func (h *Handler) WorksheetCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Worksheet(r.Context(), q)
	if err != nil {
		h.logger.Error("worksheet csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="worksheet.csv"`)
	if err := WriteWorksheetCSV(w, report); err != nil {
		h.logger.Error("stream worksheet csv", slog.Any("error", err))
	}
}
