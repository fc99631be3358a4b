package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestReportCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client, time.Minute), mr
}

type cachedReport struct {
	Total float64 `json:"total"`
	Rows  int     `json:"rows"`
}

func TestReportCacheRoundTrip(t *testing.T) {
	cache, _ := newTestReportCache(t)
	ctx := context.Background()

	var miss cachedReport
	require.False(t, cache.Get(ctx, "report:c1:tb", &miss))

	cache.Set(ctx, "report:c1:tb", cachedReport{Total: 620, Rows: 4})

	var hit cachedReport
	require.True(t, cache.Get(ctx, "report:c1:tb", &hit))
	require.InDelta(t, 620, hit.Total, 0.001)
	require.Equal(t, 4, hit.Rows)
}

func TestReportCacheBustIsCompanyScoped(t *testing.T) {
	cache, _ := newTestReportCache(t)
	ctx := context.Background()

	cache.Set(ctx, "report:c1:tb", cachedReport{Rows: 1})
	cache.Set(ctx, "report:c1:gl:110", cachedReport{Rows: 2})
	cache.Set(ctx, "report:c2:tb", cachedReport{Rows: 3})

	cache.Bust(ctx, 1)

	var out cachedReport
	require.False(t, cache.Get(ctx, "report:c1:tb", &out))
	require.False(t, cache.Get(ctx, "report:c1:gl:110", &out))
	require.True(t, cache.Get(ctx, "report:c2:tb", &out))
	require.Equal(t, 3, out.Rows)
}

func TestReportCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestReportCache(t)
	ctx := context.Background()

	cache.Set(ctx, "report:c1:tb", cachedReport{Rows: 1})
	mr.FastForward(2 * time.Minute)

	var out cachedReport
	require.False(t, cache.Get(ctx, "report:c1:tb", &out))
}

func TestReportCacheNilClientIsDisabled(t *testing.T) {
	cache := NewReportCache(nil, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "report:c1:tb", cachedReport{Rows: 1})
	var out cachedReport
	require.False(t, cache.Get(ctx, "report:c1:tb", &out))
	cache.Bust(ctx, 1)
}

func TestReportKeyIsDeterministic(t *testing.T) {
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	a := ReportKey("tb", 1, []int64{3, 1, 2}, from, to, 2)
	b := ReportKey("tb", 1, []int64{1, 2, 3}, from, to, 2)
	require.Equal(t, a, b, "outlet order must not change the key")

	all := ReportKey("tb", 1, nil, from, to, 2)
	require.NotEqual(t, a, all)
	require.Contains(t, all, "report:c1:")
}
