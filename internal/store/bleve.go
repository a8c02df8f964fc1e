package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexptok "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// regulationAnalyzer tokenizes with clausePattern so dotted clause
	// references survive as single terms, then lowercases and strips
	// English stop words.
	regulationAnalyzer = "regulation"

	clauseTokenizer = "clause"

	// indexBatchSize bounds memory during bulk indexing.
	indexBatchSize = 500
)

// BleveIndex is a BM25 index over regulation text backed by Bleve.
// A path of "" creates an in-memory index, used by tests.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *slog.Logger
	closed bool
}

var _ BM25Index = (*BleveIndex)(nil)

// NewBleveIndex opens the index at path, creating it if absent. An index
// that exists but cannot be opened is treated as corrupt and rebuilt.
func NewBleveIndex(path string, logger *slog.Logger) (*BleveIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	im, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("building index mapping: %w", err)
	}

	var index bleve.Index
	if path == "" {
		index, err = bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
		return &BleveIndex{index: index, logger: logger}, nil
	}

	index, err = bleve.Open(path)
	switch {
	case err == nil:
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		index, err = bleve.New(path, im)
		if err != nil {
			return nil, fmt.Errorf("creating index at %s: %w", path, err)
		}
	default:
		// The on-disk index is unreadable, usually after an unclean
		// shutdown. Rebuilding loses nothing that a reindex cannot
		// restore from the catalog.
		logger.Warn("keyword index unreadable, rebuilding",
			"path", path, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("removing corrupt index at %s: %w", path, rmErr)
		}
		index, err = bleve.New(path, im)
		if err != nil {
			return nil, fmt.Errorf("recreating index at %s: %w", path, err)
		}
	}

	return &BleveIndex{index: index, path: path, logger: logger}, nil
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomTokenizer(clauseTokenizer, map[string]interface{}{
		"type":   regexptok.Name,
		"regexp": clausePattern,
	}); err != nil {
		return nil, err
	}
	if err := im.AddCustomAnalyzer(regulationAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     clauseTokenizer,
		"token_filters": []string{lowercase.Name, en.StopName},
	}); err != nil {
		return nil, err
	}

	content := bleve.NewTextFieldMapping()
	content.Analyzer = regulationAnalyzer
	content.Store = false
	content.IncludeTermVectors = true

	section := bleve.NewTextFieldMapping()
	section.Analyzer = regulationAnalyzer
	section.Store = false
	section.IncludeTermVectors = true

	tag := bleve.NewTextFieldMapping()
	tag.Analyzer = keyword.Name
	tag.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("section", section)
	doc.AddFieldMappingsAt("source", tag)
	doc.AddFieldMappingsAt("authority", tag)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = regulationAnalyzer
	return im, nil
}

// Index adds or replaces documents in batches.
func (b *BleveIndex) Index(ctx context.Context, docs []*Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if doc.ID == "" {
			return fmt.Errorf("document %d has empty id", i)
		}
		if err := batch.Index(doc.ID, map[string]interface{}{
			"content":   doc.Content,
			"section":   doc.Section,
			"source":    doc.SourceLabel,
			"authority": doc.AuthorityTag,
		}); err != nil {
			return fmt.Errorf("batching document %s: %w", doc.ID, err)
		}
		if batch.Size() >= indexBatchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("flushing index batch: %w", err)
			}
			batch = b.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("flushing index batch: %w", err)
		}
	}
	return nil
}

// Search runs a lexical query over content and section. Section matches
// are boosted so bare clause references surface their own clause first.
func (b *BleveIndex) Search(ctx context.Context, queryText string, limit int) ([]BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	if limit <= 0 || queryText == "" {
		return nil, nil
	}

	contentQuery := bleve.NewMatchQuery(queryText)
	contentQuery.SetField("content")

	sectionQuery := bleve.NewMatchQuery(queryText)
	sectionQuery.SetField("section")
	sectionQuery.SetBoost(1.5)

	req := bleve.NewSearchRequestOptions(
		bleve.NewDisjunctionQuery(contentQuery, sectionQuery), limit, 0, false)
	req.IncludeLocations = true

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]BM25Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, BM25Result{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTerms(hit.Locations),
		})
	}
	return results, nil
}

// matchedTerms flattens hit locations into a sorted, deduplicated term list.
func matchedTerms(locations search.FieldTermLocationMap) []string {
	seen := make(map[string]struct{})
	for _, field := range locations {
		for term := range field {
			seen[term] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Delete removes documents by id. Missing ids are not an error.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (b *BleveIndex) Count() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}
	return b.index.DocCount()
}

// Close releases the underlying index. Further calls return ErrClosed.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
