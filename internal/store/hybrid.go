package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Hybrid scoring defaults. Semantic matches carry more weight because the
// query has usually been rephrased away from the regulation's own wording;
// the fallback score is what a keyword-only hit is worth when the
// embedding provider is down.
const (
	DefaultLexicalWeight        = 0.4
	DefaultSemanticWeight       = 0.6
	DefaultKeywordFallbackScore = 0.6

	// embedWorkers bounds concurrent embedding calls during indexing.
	embedWorkers = 4
)

// HybridConfig tunes how the two retrieval legs are blended.
type HybridConfig struct {
	LexicalWeight        float64
	SemanticWeight       float64
	KeywordFallbackScore float64
}

func (c *HybridConfig) applyDefaults() {
	if c.LexicalWeight <= 0 {
		c.LexicalWeight = DefaultLexicalWeight
	}
	if c.SemanticWeight <= 0 {
		c.SemanticWeight = DefaultSemanticWeight
	}
	if c.KeywordFallbackScore <= 0 {
		c.KeywordFallbackScore = DefaultKeywordFallbackScore
	}
}

// HybridStore runs keyword and semantic retrieval over one corpus and
// blends the two into a single ranked candidate list. When the semantic
// leg is unavailable it degrades to keyword-only results at a flat
// fallback score rather than failing the query.
type HybridStore struct {
	name     string
	bm25     BM25Index
	vectors  VectorStore
	catalog  *Catalog
	embedder Embedder
	cfg      HybridConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ SearchStore = (*HybridStore)(nil)

// NewHybridStore assembles a store. embedder and vectors may both be nil,
// which produces a keyword-only store.
func NewHybridStore(name string, bm25 BM25Index, vectors VectorStore,
	catalog *Catalog, embedder Embedder, cfg HybridConfig, logger *slog.Logger) *HybridStore {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &HybridStore{
		name:     name,
		bm25:     bm25,
		vectors:  vectors,
		catalog:  catalog,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("store", name),
	}
}

func (s *HybridStore) Name() string { return s.name }

// Index writes documents to the catalog and both indexes. Embedding
// failures for individual documents are logged and skipped so a flaky
// provider cannot abort a bulk load; keyword search still covers them.
func (s *HybridStore) Index(ctx context.Context, docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.catalog.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	if err := s.bm25.Index(ctx, docs); err != nil {
		return fmt.Errorf("writing keyword index: %w", err)
	}

	if s.embedder == nil || s.vectors == nil {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for _, doc := range docs {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, embeddingText(doc))
			if err != nil {
				s.logger.Warn("embedding failed, document is keyword-only",
					"id", doc.ID, "error", err)
				return nil
			}
			if err := s.vectors.Add(doc.ID, vec); err != nil {
				return fmt.Errorf("adding vector for %s: %w", doc.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// embeddingText prefixes the section path so clause context survives into
// the vector.
func embeddingText(doc *Document) string {
	if doc.Section == "" {
		return doc.Content
	}
	return doc.Section + "\n" + doc.Content
}

// HybridSearch runs both legs and blends the scores per candidate.
func (s *HybridStore) HybridSearch(ctx context.Context, query string, k int) ([]*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if k <= 0 || query == "" {
		return nil, nil
	}

	// Each leg over-fetches so the blended ranking has room to reorder.
	fetch := k * 2

	lexical, err := s.bm25.Search(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("keyword leg: %w", err)
	}

	semantic := s.semanticSearch(ctx, query, fetch)

	if len(semantic) == 0 {
		return s.keywordOnly(ctx, lexical, k)
	}

	// Normalize lexical scores into [0,1] against the best hit. BM25
	// scores are unbounded and corpus-dependent.
	var maxLex float64
	for _, r := range lexical {
		if r.Score > maxLex {
			maxLex = r.Score
		}
	}

	type blend struct {
		lexical    float64
		similarity float64
	}
	scores := make(map[string]*blend, len(lexical)+len(semantic))
	for _, r := range lexical {
		b := &blend{}
		if maxLex > 0 {
			b.lexical = r.Score / maxLex
		}
		scores[r.DocID] = b
	}
	for _, r := range semantic {
		b, ok := scores[r.ID]
		if !ok {
			b = &blend{}
			scores[r.ID] = b
		}
		b.similarity = r.Score
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	docs, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading catalog entries: %w", err)
	}

	candidates := make([]*Candidate, 0, len(scores))
	for id, b := range scores {
		doc, ok := docs[id]
		if !ok {
			// Index and catalog disagree; stale index entry.
			s.logger.Warn("indexed id missing from catalog", "id", id)
			continue
		}
		candidates = append(candidates, &Candidate{
			ID:           doc.ID,
			SourceLabel:  doc.SourceLabel,
			Section:      doc.Section,
			Content:      doc.Content,
			AuthorityTag: doc.AuthorityTag,
			Similarity:   b.similarity,
			HybridScore:  s.cfg.LexicalWeight*b.lexical + s.cfg.SemanticWeight*b.similarity,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].HybridScore != candidates[j].HybridScore {
			return candidates[i].HybridScore > candidates[j].HybridScore
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// semanticSearch runs the vector leg. Any failure degrades to an empty
// result; the caller falls back to keyword-only scoring.
func (s *HybridStore) semanticSearch(ctx context.Context, query string, k int) []VectorResult {
	if s.embedder == nil || s.vectors == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, falling back to keyword-only",
			"error", err)
		return nil
	}
	results, err := s.vectors.Search(vec, k)
	if err != nil {
		s.logger.Warn("vector search failed, falling back to keyword-only",
			"error", err)
		return nil
	}
	return results
}

// keywordOnly converts lexical hits to candidates at a flat fallback
// score, preserving BM25 order.
func (s *HybridStore) keywordOnly(ctx context.Context, lexical []BM25Result, k int) ([]*Candidate, error) {
	if len(lexical) > k {
		lexical = lexical[:k]
	}
	if len(lexical) == 0 {
		return nil, nil
	}

	ids := make([]string, len(lexical))
	for i, r := range lexical {
		ids[i] = r.DocID
	}
	docs, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading catalog entries: %w", err)
	}

	candidates := make([]*Candidate, 0, len(lexical))
	for _, r := range lexical {
		doc, ok := docs[r.DocID]
		if !ok {
			s.logger.Warn("indexed id missing from catalog", "id", r.DocID)
			continue
		}
		candidates = append(candidates, &Candidate{
			ID:           doc.ID,
			SourceLabel:  doc.SourceLabel,
			Section:      doc.Section,
			Content:      doc.Content,
			AuthorityTag: doc.AuthorityTag,
			HybridScore:  s.cfg.KeywordFallbackScore,
		})
	}
	return candidates, nil
}

// Delete removes documents from the catalog and both indexes.
func (s *HybridStore) Delete(ctx context.Context, ids []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.bm25.Delete(ctx, ids); err != nil {
		return err
	}
	if s.vectors != nil {
		for _, id := range ids {
			s.vectors.Delete(id)
		}
	}
	return s.catalog.Delete(ctx, ids)
}

// Save persists the vector index if present.
func (s *HybridStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.vectors == nil {
		return nil
	}
	return s.vectors.Save()
}

// Close closes all components, returning the first error.
func (s *HybridStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.bm25.Close(); err != nil {
		firstErr = err
	}
	if s.vectors != nil {
		if err := s.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
