package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/balanca-pos/balanca/internal/billing"
	"github.com/balanca-pos/balanca/internal/ledger/accounts"
	"github.com/balanca-pos/balanca/internal/ledger/depreciation"
	"github.com/balanca-pos/balanca/internal/ledger/journal"
	"github.com/balanca-pos/balanca/internal/ledger/reports"
	"github.com/balanca-pos/balanca/internal/platform/httpx"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	AccountsHandler     *accounts.Handler
	JournalHandler      *journal.Handler
	ReportsHandler      *reports.Handler
	DepreciationHandler *depreciation.Handler
	BillingHandler      *billing.Handler

	// Idempotency backs the Idempotency-Key header on mutating routes.
	Idempotency httpx.IdempotencyGuard
}

// NewRouter constructs the chi.Router with Balanca defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/accounts", func(r chi.Router) {
		params.AccountsHandler.MountRoutes(r)
		r.Route("/depreciation", params.DepreciationHandler.MountRoutes)
	})
	r.Route("/journals", func(r chi.Router) {
		r.Use(httpx.Idempotency(params.Idempotency, "journal"))
		params.JournalHandler.MountRoutes(r)
	})
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	r.Route("/sales", func(r chi.Router) {
		r.Use(httpx.Idempotency(params.Idempotency, "sales"))
		params.BillingHandler.MountRoutes(r)
	})

	return r
}
