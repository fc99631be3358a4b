package httpx

import (
	"net/http"
	"strconv"

	"github.com/balanca-pos/balanca/internal/shared"
)

// ErrCompanyRequired indicates a request without tenant scoping.
var ErrCompanyRequired = shared.E(shared.ErrValidation, "httpx: company id required")

// CompanyID extracts the tenant scope set by the authentication layer.
// Authentication itself happens upstream; the ledger core only requires that
// every request arrives scoped to one company.
func CompanyID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-Company-ID")
	if raw == "" {
		return 0, ErrCompanyRequired
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrCompanyRequired
	}
	return id, nil
}

// QueryInt64 parses an optional int64 query parameter, returning def when absent.
func QueryInt64(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
