// Package cache is the semantic result cache: full pipeline outputs keyed
// by normalized query, with lifetimes proportional to answer confidence.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// TTL tiers by average confidence. High-confidence answers earn long
// cache lives; shaky ones get recomputed soon.
const (
	TTLHigh   = 24 * time.Hour
	TTLGood   = 12 * time.Hour
	TTLMedium = 4 * time.Hour
	TTLLow    = 1 * time.Hour

	DefaultMaxEntries    = 4096
	DefaultSweepInterval = 15 * time.Minute
)

// Entry is one cached pipeline result set. Payload is the serialized
// result list; the cache does not interpret it.
type Entry struct {
	QueryHash         string    `json:"queryHash"`
	QueryText         string    `json:"queryText"`
	ContextTag        string    `json:"contextTag,omitempty"`
	Payload           []byte    `json:"payload"`
	AverageConfidence float64   `json:"averageConfidence"`
	HitCount          int       `json:"hitCount"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is past its expiry at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store persists cache entries. Get returns (nil, nil) on a miss; an
// expired entry is a miss. A hit increments the entry's hit count.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error

	// Purge removes expired entries, returning how many were removed.
	Purge(ctx context.Context) (int, error)

	Clear(ctx context.Context) error
	Close() error
}

// Key builds the stable hash for a query and optional context tag. Query
// text is lowercased and trimmed so trivial rephrasings share an entry.
func Key(queryText, contextTag string) string {
	normalized := strings.ToLower(strings.TrimSpace(queryText))
	sum := sha256.Sum256([]byte(normalized + "\x00" + contextTag))
	return hex.EncodeToString(sum[:])
}

// TTLFor selects the entry lifetime from average confidence.
func TTLFor(averageConfidence float64) time.Duration {
	switch {
	case averageConfidence > 0.90:
		return TTLHigh
	case averageConfidence > 0.75:
		return TTLGood
	case averageConfidence > 0.60:
		return TTLMedium
	default:
		return TTLLow
	}
}

// NewEntry assembles an entry with its expiry derived from confidence.
func NewEntry(queryText, contextTag string, payload []byte, averageConfidence float64, now time.Time) *Entry {
	return &Entry{
		QueryHash:         Key(queryText, contextTag),
		QueryText:         queryText,
		ContextTag:        contextTag,
		Payload:           payload,
		AverageConfidence: averageConfidence,
		CreatedAt:         now,
		ExpiresAt:         now.Add(TTLFor(averageConfidence)),
	}
}
