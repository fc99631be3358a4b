package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/balanca-pos/balanca/internal/shared"
)

// IdempotencyHeader carries the client-chosen retry key. Offline POS clients
// replay queued submissions after reconnecting; the key makes the replay
// harmless.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyGuard reserves request keys. shared.IdempotencyStore satisfies
// it; the constraint-backed insert is the race arbiter.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Idempotency rejects a repeated Idempotency-Key with 409 before the handler
// runs. Requests without the header pass through untouched. A handler
// response of 400 or above releases the key so the client can retry.
func Idempotency(guard IdempotencyGuard, module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(IdempotencyHeader)
			if guard == nil || raw == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			companyID, err := CompanyID(r)
			if err != nil {
				RespondError(w, err)
				return
			}
			key := fmt.Sprintf("%d:%s", companyID, raw)
			if err := guard.CheckAndInsert(r.Context(), key, module); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					Problem(w, http.StatusConflict, "Conflict", "request already processed")
					return
				}
				RespondError(w, err)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusBadRequest {
				_ = guard.Delete(context.WithoutCancel(r.Context()), key)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
