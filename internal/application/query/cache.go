// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// ReportCache is the optional best-effort cache in front of report assembly.
// A nil cache, a miss, or any cache failure all degrade to computing the
// report directly; caching never changes results.
type ReportCache interface {
	// Get unmarshals the cached value for key into dest; any error means miss.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DefaultReportTTL bounds staleness of cached report results. Recompute
// invalidates turma-scoped entries eagerly; the TTL covers everything else.
const DefaultReportTTL = 5 * time.Minute

// cacheKey builds a deterministic key from the report name and the raw
// request parameters. Parameters are canonicalized by key order so equal
// filters always map to the same entry.
func cacheKey(report string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('&')
	}

	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("report:%s:%x", report, h.Sum64())
}

// tryCache attempts a cache read; false means compute the report.
func tryCache(ctx context.Context, cache ReportCache, key string, dest interface{}) bool {
	if cache == nil {
		return false
	}
	return cache.Get(ctx, key, dest) == nil
}

// storeCache writes a computed report back, ignoring failures.
func storeCache(ctx context.Context, cache ReportCache, key string, value interface{}) {
	if cache == nil {
		return
	}
	_ = cache.Set(ctx, key, value, DefaultReportTTL)
}
