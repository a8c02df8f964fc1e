package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	source_label  TEXT NOT NULL,
	section       TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL,
	authority_tag TEXT NOT NULL DEFAULT ''
);
`

// Catalog is the authoritative document record behind the search indexes.
// The keyword and vector indexes can both be rebuilt from it.
type Catalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// OpenCatalog opens or creates the catalog database at path. A path of
// ":memory:" gives an in-memory catalog for tests.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog at %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes itself; more than one
	// connection just invites SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Upsert inserts or replaces documents in a single transaction.
func (c *Catalog) Upsert(ctx context.Context, docs []*Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, source_label, section, content, authority_tag)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_label = excluded.source_label,
			section = excluded.section,
			content = excluded.content,
			authority_tag = excluded.authority_tag`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document with empty id")
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.SourceLabel,
			doc.Section, doc.Content, doc.AuthorityTag); err != nil {
			return fmt.Errorf("upserting document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the document with the given id, or nil if absent.
func (c *Catalog) Get(ctx context.Context, id string) (*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT id, source_label, section, content, authority_tag
		FROM documents WHERE id = ?`, id)

	var doc Document
	err := row.Scan(&doc.ID, &doc.SourceLabel, &doc.Section, &doc.Content, &doc.AuthorityTag)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", id, err)
	}
	return &doc, nil
}

// GetMany returns the documents for the given ids, keyed by id. Missing
// ids are simply absent from the result.
func (c *Catalog) GetMany(ctx context.Context, ids []string) (map[string]*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if len(ids) == 0 {
		return map[string]*Document{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source_label, section, content, authority_tag
		FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]*Document, len(ids))
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.SourceLabel, &doc.Section,
			&doc.Content, &doc.AuthorityTag); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs[doc.ID] = &doc
	}
	return docs, rows.Err()
}

// All streams every document, used for reindexing.
func (c *Catalog) All(ctx context.Context) ([]*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source_label, section, content, authority_tag
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.SourceLabel, &doc.Section,
			&doc.Content, &doc.AuthorityTag); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete removes documents by id. Missing ids are not an error.
func (c *Catalog) Delete(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored documents.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrClosed
	}

	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
