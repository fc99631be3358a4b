package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache stores rendered report payloads in redis with a TTL. Posting
// activity busts the company's keys, so reports never serve stale balances
// for longer than one request cycle after a post.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReportCache constructs the cache. A nil client disables caching.
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{rdb: rdb, ttl: ttl}
}

// Get loads a cached payload into dest. A miss or decode failure returns false.
func (c *ReportCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores a payload under key. Failures are ignored; the cache is advisory.
func (c *ReportCache) Set(ctx context.Context, key string, value any) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Bust invalidates every cached report for the company.
func (c *ReportCache) Bust(ctx context.Context, companyID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	pattern := fmt.Sprintf("report:c%d:*", companyID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = c.rdb.Del(ctx, iter.Val()).Err()
	}
}

// ReportKey builds a deterministic cache key for a report request.
func ReportKey(report string, companyID int64, outletIDs []int64, from, to time.Time, round int32) string {
	outletToken := "all"
	if len(outletIDs) > 0 {
		sorted := append([]int64(nil), outletIDs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		parts := make([]string, len(sorted))
		for i, id := range sorted {
			parts[i] = fmt.Sprintf("%d", id)
		}
		outletToken = strings.Join(parts, ",")
	}
	return fmt.Sprintf("report:c%d:%s:%s|%s..%s|r%d",
		companyID, report, outletToken,
		from.Format("2006-01-02"), to.Format("2006-01-02"), round)
}
