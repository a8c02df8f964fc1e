package store

import (
	"context"
	"errors"
	"fmt"
)

// Authority tags carried by indexed documents. Statutory text outranks
// normative standards, which outrank guidance, when confidence is scored.
const (
	AuthorityStatutory = "statutory"
	AuthorityNormative = "normative"
	AuthorityGuidance  = "guidance"
)

// Document is one indexable unit: a regulation clause, a guidance
// paragraph, or a table row flattened to text.
type Document struct {
	// ID is the stable logical identifier, e.g. "bs7671:701.411.3.3".
	ID string `json:"id"`

	// SourceLabel names the publication the text came from,
	// e.g. "BS 7671:2018+A2:2022".
	SourceLabel string `json:"source_label"`

	// Section is the clause path or heading within the source.
	Section string `json:"section"`

	// Content is the full searchable text.
	Content string `json:"content"`

	// AuthorityTag is one of the Authority* constants. Empty is
	// treated as guidance.
	AuthorityTag string `json:"authority_tag,omitempty"`
}

// Candidate is a retrieval result flowing through the ranking pipeline.
// HybridScore is set by the store that produced it; CrossEncoderScore and
// FinalScore are filled in by later stages and are zero until then.
type Candidate struct {
	ID                string  `json:"id"`
	SourceLabel       string  `json:"sourceLabel"`
	Section           string  `json:"section"`
	Content           string  `json:"content"`
	AuthorityTag      string  `json:"authorityTag,omitempty"`
	Similarity        float64 `json:"similarity"`
	HybridScore       float64 `json:"hybridScore"`
	CrossEncoderScore float64 `json:"crossEncoderScore"`
	FinalScore        float64 `json:"finalScore"`
}

// SearchStore answers ranked hybrid queries over one corpus (or, for the
// Registry, over several weighted corpora).
type SearchStore interface {
	// Name identifies the store for logging and attribution.
	Name() string

	// HybridSearch returns at most k candidates ranked by descending
	// HybridScore. An empty result with a nil error means nothing
	// matched; an error means the store itself could not answer.
	HybridSearch(ctx context.Context, query string, k int) ([]*Candidate, error)

	Close() error
}

// BM25Result is a single lexical match.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25Index is the lexical leg of a hybrid store.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]BM25Result, error)
	Delete(ctx context.Context, ids []string) error
	Count() (uint64, error)
	Close() error
}

// VectorResult is a single semantic match. Score is cosine similarity
// mapped into [0, 1].
type VectorResult struct {
	ID    string
	Score float64
}

// VectorStore is the semantic leg of a hybrid store.
type VectorStore interface {
	Add(id string, vector []float32) error
	Search(vector []float32, k int) ([]VectorResult, error)
	Delete(id string) bool
	Count() int
	Save() error
	Close() error
}

// Embedder turns text into a vector. Satisfied by embed.Embedder; declared
// here so the store does not depend on a concrete provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// DimensionMismatchError reports a vector whose length does not match the
// index dimensionality.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
