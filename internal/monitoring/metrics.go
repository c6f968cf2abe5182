// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes:  Total and successful HTTP request counts
//   - compactions:         Number of compaction operations
//   - fallbacks:           Compactions that used the tail window
//   - cache_hits/misses:   Result cache performance
//   - chars_in/chars_out:  Characters before and after compaction
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	requests    atomic.Int64
	successes   atomic.Int64
	compactions atomic.Int64
	fallbacks   atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	charsIn     atomic.Int64
	charsOut    atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRequest records a request.
func (mc *MetricsCollector) RecordRequest(success bool, _ time.Duration) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordCompaction records a compaction and its sizes.
func (mc *MetricsCollector) RecordCompaction(originalSize, compactedSize int, fallback bool) {
	mc.compactions.Add(1)
	mc.charsIn.Add(int64(originalSize))
	mc.charsOut.Add(int64(compactedSize))
	if fallback {
		mc.fallbacks.Add(1)
	}
}

// RecordCacheHit records a cache hit.
func (mc *MetricsCollector) RecordCacheHit() { mc.cacheHits.Add(1) }

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss() { mc.cacheMisses.Add(1) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":     mc.requests.Load(),
		"successes":    mc.successes.Load(),
		"compactions":  mc.compactions.Load(),
		"fallbacks":    mc.fallbacks.Load(),
		"cache_hits":   mc.cacheHits.Load(),
		"cache_misses": mc.cacheMisses.Load(),
		"chars_in":     mc.charsIn.Load(),
		"chars_out":    mc.charsOut.Load(),
	}
}
