package reports

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balanca-pos/balanca/internal/shared"
)

func reportRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Header.Set("X-Company-ID", "1")
	return r
}

func TestParseQueryAcceptsAsOfForDateTo(t *testing.T) {
	q, err := parseQuery(reportRequest(t, "/reports/trial-balance?as_of=2025-03-31"))
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), q.DateTo)

	// An explicit date_to wins over the alias.
	q, err = parseQuery(reportRequest(t, "/reports/trial-balance?as_of=2025-03-31&date_to=2025-04-30"))
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), q.DateTo)
}

func TestParseQueryRejectsBadDates(t *testing.T) {
	_, err := parseQuery(reportRequest(t, "/reports/trial-balance?as_of=31-03-2025"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = parseQuery(reportRequest(t, "/reports/general-ledger?date_from=yesterday"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParseQueryParsesOutletList(t *testing.T) {
	q, err := parseQuery(reportRequest(t, "/reports/trial-balance?outlet_id=3,1"))
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1}, q.OutletIDs)

	_, err = parseQuery(reportRequest(t, "/reports/trial-balance?outlet_id=abc"))
	require.ErrorIs(t, err, shared.ErrValidation)
}
