// Package telemetry collects pipeline run metrics for retrieval tuning.
// All telemetry data is stored locally - no external reporting.
package telemetry

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP100   LatencyBucket = "p100"   // <100ms
	BucketP500   LatencyBucket = "p500"   // 100-500ms
	BucketP2000  LatencyBucket = "p2000"  // 500ms-2s
	BucketP10000 LatencyBucket = "p10000" // 2-10s
	BucketPMax   LatencyBucket = "pmax"   // >=10s
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	case ms < 2000:
		return BucketP2000
	case ms < 10000:
		return BucketP10000
	default:
		return BucketPMax
	}
}

// RunEvent represents a single pipeline run for telemetry recording.
type RunEvent struct {
	Query          string
	Intent         string
	ResultCount    int
	Latency        time.Duration
	CacheHit       bool
	DegradedCalls  int
	OracleFallback bool
	ConfidenceBand string
	Timestamp      time.Time
}

// IsZeroResult returns true if this run returned no results.
func (e RunEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Buffer full - oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items from the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// ExtractTerms extracts searchable terms from a query string.
// Terms are lowercased and filtered to minimum length 3.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	words := strings.Fields(query)
	var terms []string
	for _, w := range words {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}

	if len(terms) == 0 {
		return nil
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable snapshot of pipeline metrics.
type Snapshot struct {
	IntentCounts        map[string]int64        `json:"intent_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	BandCounts          map[string]int64        `json:"band_counts"`
	TotalRuns           int64                   `json:"total_runs"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	CacheHits           int64                   `json:"cache_hits"`
	CacheMisses         int64                   `json:"cache_misses"`
	DegradedCallCount   int64                   `json:"degraded_call_count"`
	OracleFallbackCount int64                   `json:"oracle_fallback_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result runs.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalRuns) * 100
}

// CacheHitRate returns the fraction of runs served from cache.
func (s *Snapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// MetricsStore defines persistence operations for pipeline metrics.
type MetricsStore interface {
	// SaveIntentCounts upserts daily intent counts.
	SaveIntentCounts(date string, counts map[string]int64) error

	// GetIntentCounts retrieves counts for a date range.
	GetIntentCounts(from, to string) (map[string]int64, error)

	// UpsertTermCounts updates term frequency counts.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms retrieves the top N terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records a zero-result query.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries retrieves recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves latency distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// SaveCounters upserts daily named counters (cache hits, degraded
	// calls, confidence bands).
	SaveCounters(date string, counters map[string]int64) error

	// GetCounters retrieves counters for a date range.
	GetCounters(from, to string) (map[string]int64, error)

	// Close releases resources.
	Close() error
}

// Counter names persisted by Flush.
const (
	CounterCacheHit       = "cache_hit"
	CounterCacheMiss      = "cache_miss"
	CounterDegradedCall   = "degraded_call"
	CounterOracleFallback = "oracle_fallback"
	counterBandPrefix     = "band_"
)

// Config configures the metrics collector.
type Config struct {
	TopTermsCapacity    int           // Max terms to track (default: 100)
	ZeroResultsCapacity int           // Max zero-result queries to track (default: 100)
	FlushInterval       time.Duration // How often to flush to store (default: 60s, 0 = no auto-flush)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		FlushInterval:       60 * time.Second,
	}
}

// Metrics collects pipeline telemetry. Thread-safe for concurrent access.
type Metrics struct {
	mu sync.RWMutex

	intents         map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	bands           map[string]int64
	totalRuns       int64
	zeroResultCount int64
	cacheHits       int64
	cacheMisses     int64
	degradedCalls   int64
	oracleFallbacks int64
	startTime       time.Time

	store       MetricsStore
	config      Config
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewMetrics creates a new metrics collector with default configuration.
// If store is nil, metrics are only kept in memory.
func NewMetrics(store MetricsStore) *Metrics {
	return NewMetricsWithConfig(store, DefaultConfig())
}

// NewMetricsWithConfig creates a new metrics collector with custom configuration.
func NewMetricsWithConfig(store MetricsStore, cfg Config) *Metrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	m := &Metrics{
		intents:     make(map[string]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		bands:       make(map[string]int64),
		startTime:   time.Now(),
		store:       store,
		config:      cfg,
		stopCh:      make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

// flushLoop periodically flushes metrics to storage.
func (m *Metrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures metrics from a pipeline run.
// This method is thread-safe and non-blocking.
func (m *Metrics) Record(event RunEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if event.Intent != "" {
		m.intents[event.Intent]++
	}
	m.totalRuns++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() && !event.CacheHit {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}

	m.latencies[LatencyToBucket(event.Latency)]++

	if event.CacheHit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
	m.degradedCalls += int64(event.DegradedCalls)
	if event.OracleFallback {
		m.oracleFallbacks++
	}
	if event.ConfidenceBand != "" {
		m.bands[event.ConfidenceBand]++
	}
}

// Snapshot returns current metrics for reporting.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	intentCounts := make(map[string]int64, len(m.intents))
	for k, v := range m.intents {
		intentCounts[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	// Sort by count descending (small list, simple swap sort)
	for i := 0; i < len(topTerms); i++ {
		for j := i + 1; j < len(topTerms); j++ {
			if topTerms[j].Count > topTerms[i].Count {
				topTerms[i], topTerms[j] = topTerms[j], topTerms[i]
			}
		}
	}

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	bands := make(map[string]int64, len(m.bands))
	for k, v := range m.bands {
		bands[k] = v
	}

	return &Snapshot{
		IntentCounts:        intentCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		BandCounts:          bands,
		TotalRuns:           m.totalRuns,
		ZeroResultCount:     m.zeroResultCount,
		CacheHits:           m.cacheHits,
		CacheMisses:         m.cacheMisses,
		DegradedCallCount:   m.degradedCalls,
		OracleFallbackCount: m.oracleFallbacks,
		Since:               m.startTime,
	}
}

// Flush persists in-memory metrics to the store.
// Safe to call even if no store is configured.
func (m *Metrics) Flush() error {
	if m.store == nil {
		return nil
	}

	snapshot := m.Snapshot()
	today := time.Now().Format("2006-01-02")

	if err := m.store.SaveIntentCounts(today, snapshot.IntentCounts); err != nil {
		return err
	}

	termCounts := make(map[string]int64, len(snapshot.TopTerms))
	for _, tc := range snapshot.TopTerms {
		termCounts[tc.Term] = tc.Count
	}
	if err := m.store.UpsertTermCounts(termCounts); err != nil {
		return err
	}

	if err := m.store.SaveLatencyCounts(today, snapshot.LatencyDistribution); err != nil {
		return err
	}

	counters := map[string]int64{
		CounterCacheHit:       snapshot.CacheHits,
		CounterCacheMiss:      snapshot.CacheMisses,
		CounterDegradedCall:   snapshot.DegradedCallCount,
		CounterOracleFallback: snapshot.OracleFallbackCount,
	}
	for band, count := range snapshot.BandCounts {
		counters[counterBandPrefix+band] = count
	}
	if err := m.store.SaveCounters(today, counters); err != nil {
		return err
	}

	return nil
}

// Close flushes and releases resources.
func (m *Metrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
