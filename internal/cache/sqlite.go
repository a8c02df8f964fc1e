package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	query_hash         TEXT PRIMARY KEY,
	query_text         TEXT NOT NULL,
	context_tag        TEXT NOT NULL DEFAULT '',
	payload            BLOB NOT NULL,
	average_confidence REAL NOT NULL,
	hit_count          INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	expires_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// SQLiteStore persists cache entries in SQLite so answers survive
// restarts. Expiry is lazy on read; an optional background sweeper keeps
// the table from accumulating dead rows between reads.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *slog.Logger

	maxEntries int
	closed     bool
	stopSweep  chan struct{}
	sweepDone  chan struct{}
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteConfig configures the persistent cache store.
type SQLiteConfig struct {
	Path       string
	MaxEntries int

	// SweepInterval between background purges. Zero disables the
	// sweeper; lazy expiry still applies.
	SweepInterval time.Duration
}

func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	s := &SQLiteStore{
		db:         db,
		logger:     logger,
		maxEntries: cfg.MaxEntries,
	}

	if cfg.SweepInterval > 0 {
		s.stopSweep = make(chan struct{})
		s.sweepDone = make(chan struct{})
		go s.sweepLoop(cfg.SweepInterval)
	}
	return s, nil
}

func (s *SQLiteStore) sweepLoop(interval time.Duration) {
	defer close(s.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			removed, err := s.Purge(context.Background())
			if err != nil {
				s.logger.Warn("cache sweep failed", "error", err)
			} else if removed > 0 {
				s.logger.Debug("cache sweep", "removed", removed)
			}
		}
	}
}

// Get returns the entry for key, deleting it if expired. A hit bumps the
// stored hit count.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("cache store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT query_hash, query_text, context_tag, payload,
		       average_confidence, hit_count, created_at, expires_at
		FROM cache_entries WHERE query_hash = ?`, key)

	var entry Entry
	var createdAt, expiresAt int64
	err := row.Scan(&entry.QueryHash, &entry.QueryText, &entry.ContextTag,
		&entry.Payload, &entry.AverageConfidence, &entry.HitCount,
		&createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	entry.CreatedAt = time.Unix(createdAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)

	if entry.Expired(time.Now()) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE query_hash = ?`, key); err != nil {
			s.logger.Warn("deleting expired cache entry failed", "error", err)
		}
		return nil, nil
	}

	entry.HitCount++
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE query_hash = ?`, key); err != nil {
		s.logger.Warn("updating cache hit count failed", "error", err)
	}
	return &entry, nil
}

// Put stores the entry, replacing any existing row for the same key.
// Last writer wins on races; entries are recomputable.
func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("cache store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries
			(query_hash, query_text, context_tag, payload,
			 average_confidence, hit_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_hash) DO UPDATE SET
			query_text = excluded.query_text,
			context_tag = excluded.context_tag,
			payload = excluded.payload,
			average_confidence = excluded.average_confidence,
			hit_count = 0,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		entry.QueryHash, entry.QueryText, entry.ContextTag, entry.Payload,
		entry.AverageConfidence, entry.HitCount,
		entry.CreatedAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return s.enforceLimit(ctx)
}

// enforceLimit drops the oldest entries beyond maxEntries.
func (s *SQLiteStore) enforceLimit(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return fmt.Errorf("counting cache entries: %w", err)
	}
	if count <= s.maxEntries {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE query_hash IN (
			SELECT query_hash FROM cache_entries
			ORDER BY created_at ASC LIMIT ?)`, count-s.maxEntries)
	if err != nil {
		return fmt.Errorf("evicting cache entries: %w", err)
	}
	return nil
}

// Purge removes all expired entries.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("cache store is closed")
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear removes every entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("cache store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return err
}

// Len returns the number of stored entries, expired or not.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("cache store is closed")
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stopSweep != nil {
		close(s.stopSweep)
		<-s.sweepDone
	}
	return s.db.Close()
}
