package telemetry

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)

	require.NoError(t, InitTelemetrySchema(db))

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestSQLiteMetricsStore_RequiresDB(t *testing.T) {
	_, err := NewSQLiteMetricsStore(nil)
	assert.Error(t, err)
}

func TestSQLiteMetricsStore_IntentCounts(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	counts := map[string]int64{
		"keyword":    10,
		"structural": 5,
		"comparison": 3,
	}
	require.NoError(t, store.SaveIntentCounts("2026-08-30", counts))

	// Same-day upsert accumulates
	require.NoError(t, store.SaveIntentCounts("2026-08-30", map[string]int64{"keyword": 2}))

	got, err := store.GetIntentCounts("2026-08-30", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got["keyword"])
	assert.Equal(t, int64(5), got["structural"])
	assert.Equal(t, int64(3), got["comparison"])
}

func TestSQLiteMetricsStore_TermCounts(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.UpsertTermCounts(map[string]int64{
		"shower":  5,
		"bonding": 3,
		"rcd":     8,
	}))
	require.NoError(t, store.UpsertTermCounts(map[string]int64{"shower": 2}))

	terms, err := store.GetTopTerms(2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "rcd", terms[0].Term)
	assert.Equal(t, int64(8), terms[0].Count)
	assert.Equal(t, "shower", terms[1].Term)
	assert.Equal(t, int64(7), terms[1].Count)
}

func TestSQLiteMetricsStore_UpsertEmptyTerms(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)
	assert.NoError(t, store.UpsertTermCounts(nil))
}

func TestSQLiteMetricsStore_ZeroResultQueries(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.AddZeroResultQuery("first", now))
	require.NoError(t, store.AddZeroResultQuery("second", now))

	queries, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, queries)
}

func TestSQLiteMetricsStore_ZeroResultTrimmedAt100(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 105; i++ {
		require.NoError(t, store.AddZeroResultQuery("q", now))
	}

	queries, err := store.GetZeroResultQueries(200)
	require.NoError(t, err)
	assert.Len(t, queries, 100)
}

func TestSQLiteMetricsStore_LatencyCounts(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.SaveLatencyCounts("2026-08-30", map[LatencyBucket]int64{
		BucketP500:  4,
		BucketP2000: 2,
	}))

	got, err := store.GetLatencyCounts("2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got[BucketP500])
	assert.Equal(t, int64(2), got[BucketP2000])
}

func TestSQLiteMetricsStore_Counters(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	require.NoError(t, store.SaveCounters("2026-08-30", map[string]int64{
		CounterCacheHit:  7,
		CounterCacheMiss: 3,
		"band_high":      6,
	}))
	require.NoError(t, store.SaveCounters("2026-08-30", map[string]int64{
		CounterCacheHit: 1,
	}))

	got, err := store.GetCounters("2026-08-30", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got[CounterCacheHit])
	assert.Equal(t, int64(3), got[CounterCacheMiss])
	assert.Equal(t, int64(6), got["band_high"])
}

func TestMetrics_FlushToStore(t *testing.T) {
	store, err := NewSQLiteMetricsStore(setupTestDB(t))
	require.NoError(t, err)

	m := NewMetricsWithConfig(store, Config{FlushInterval: 0})

	m.Record(RunEvent{
		Query:          "rcd protection bathroom",
		Intent:         "keyword",
		ResultCount:    3,
		Latency:        300 * time.Millisecond,
		ConfidenceBand: "high",
	})

	require.NoError(t, m.Close())

	today := time.Now().Format("2006-01-02")
	counts, err := store.GetIntentCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["keyword"])

	counters, err := store.GetCounters(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters[CounterCacheMiss])
	assert.Equal(t, int64(1), counters["band_high"])
}
