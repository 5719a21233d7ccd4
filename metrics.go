package fusego

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement this interface to integrate with monitoring systems
// like Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each add operation.
	RecordAdd(duration time.Duration, err error)

	// RecordBatchAdd is called after each batch add operation. count is
	// the number of documents attempted, applied is the number indexed
	// before the batch stopped.
	RecordBatchAdd(count, applied int, duration time.Duration)

	// RecordSearch is called after each search operation. cacheHit
	// reports whether the result came from the cache.
	RecordSearch(limit int, duration time.Duration, cacheHit bool, err error)

	// RecordRemove is called after each remove operation.
	RecordRemove(duration time.Duration, found bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)               {}
func (NoopMetricsCollector) RecordBatchAdd(int, int, time.Duration)       {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordRemove(time.Duration, bool)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	AddTotalNanos    atomic.Int64
	BatchAddCount    atomic.Int64
	BatchAddItems    atomic.Int64
	BatchAddApplied  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchCacheHits  atomic.Int64
	SearchTotalNanos atomic.Int64
	RemoveCount      atomic.Int64
	RemoveMisses     atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())

	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordBatchAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchAdd(count, applied int, duration time.Duration) {
	b.BatchAddCount.Add(1)
	b.BatchAddItems.Add(int64(count))
	b.BatchAddApplied.Add(int64(applied))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(limit int, duration time.Duration, cacheHit bool, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())

	if cacheHit {
		b.SearchCacheHits.Add(1)
	}

	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, found bool) {
	b.RemoveCount.Add(1)

	if !found {
		b.RemoveMisses.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:        b.AddCount.Load(),
		AddErrors:       b.AddErrors.Load(),
		AddAvgNanos:     avgNanos(b.AddTotalNanos.Load(), b.AddCount.Load()),
		BatchAddCount:   b.BatchAddCount.Load(),
		BatchAddItems:   b.BatchAddItems.Load(),
		BatchAddApplied: b.BatchAddApplied.Load(),
		SearchCount:     b.SearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchCacheHits: b.SearchCacheHits.Load(),
		SearchAvgNanos:  avgNanos(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		RemoveCount:     b.RemoveCount.Load(),
		RemoveMisses:    b.RemoveMisses.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}

	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount        int64
	AddErrors       int64
	AddAvgNanos     int64
	BatchAddCount   int64
	BatchAddItems   int64
	BatchAddApplied int64
	SearchCount     int64
	SearchErrors    int64
	SearchCacheHits int64
	SearchAvgNanos  int64
	RemoveCount     int64
	RemoveMisses    int64
}
