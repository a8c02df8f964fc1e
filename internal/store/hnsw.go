package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// Default HNSW graph parameters. M and Ml follow the library defaults;
// EfSearch is raised a little because result sets here are small and
// recall matters more than per-query latency.
const (
	DefaultGraphM        = 16
	DefaultGraphMl       = 0.25
	DefaultGraphEfSearch = 40
)

// HNSWConfig configures a vector index.
type HNSWConfig struct {
	// Dimensions is the required vector length. Zero means the first
	// added vector fixes it.
	Dimensions int

	M        int
	Ml       float64
	EfSearch int
}

// HNSWIndex is an approximate nearest neighbour index over embedding
// vectors, using cosine distance. Deletion is lazy: deleted keys stay in
// the graph but are dropped from results, because the underlying library
// mishandles removal of the final node.
type HNSWIndex struct {
	mu sync.RWMutex

	graph   *hnsw.Graph[uint64]
	ids     map[string]uint64
	keys    map[uint64]string
	nextKey uint64
	dims    int

	path   string
	logger *slog.Logger
	closed bool
}

var _ VectorStore = (*HNSWIndex)(nil)

// NewHNSWIndex creates an empty index. If path is non-empty and a saved
// index exists there, it is loaded.
func NewHNSWIndex(path string, cfg HNSWConfig, logger *slog.Logger) (*HNSWIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.M <= 0 {
		cfg.M = DefaultGraphM
	}
	if cfg.Ml <= 0 {
		cfg.Ml = DefaultGraphMl
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultGraphEfSearch
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.Ml = cfg.Ml
	graph.EfSearch = cfg.EfSearch

	idx := &HNSWIndex{
		graph:  graph,
		ids:    make(map[string]uint64),
		keys:   make(map[uint64]string),
		dims:   cfg.Dimensions,
		path:   path,
		logger: logger,
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := idx.load(); err != nil {
				// A load failure means reindexing, not refusing to
				// start. The catalog still holds every document.
				logger.Warn("vector index unreadable, starting empty",
					"path", path, "error", err)
				idx.reset(cfg)
			}
		}
	}
	return idx, nil
}

func (h *HNSWIndex) reset(cfg HNSWConfig) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.Ml = cfg.Ml
	graph.EfSearch = cfg.EfSearch
	h.graph = graph
	h.ids = make(map[string]uint64)
	h.keys = make(map[uint64]string)
	h.nextKey = 0
	h.dims = cfg.Dimensions
}

// Add inserts or replaces the vector for id.
func (h *HNSWIndex) Add(id string, vector []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if id == "" {
		return fmt.Errorf("empty vector id")
	}
	if h.dims == 0 {
		h.dims = len(vector)
	}
	if len(vector) != h.dims {
		return &DimensionMismatchError{Expected: h.dims, Actual: len(vector)}
	}

	// Replacing means lazily deleting the old node and inserting a
	// fresh key; the stale node stays in the graph unmapped.
	if oldKey, exists := h.ids[id]; exists {
		delete(h.keys, oldKey)
	}

	key := h.nextKey
	h.nextKey++
	h.graph.Add(hnsw.MakeNode(key, vector))
	h.ids[id] = key
	h.keys[key] = id
	return nil
}

// Search returns up to k live ids ranked by cosine similarity mapped
// into [0, 1].
func (h *HNSWIndex) Search(vector []float32, k int) ([]VectorResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}
	if k <= 0 || h.graph.Len() == 0 {
		return nil, nil
	}
	if h.dims != 0 && len(vector) != h.dims {
		return nil, &DimensionMismatchError{Expected: h.dims, Actual: len(vector)}
	}

	// Over-fetch to cover lazily deleted nodes still in the graph.
	fetch := k + (h.graph.Len() - len(h.ids))
	nodes := h.graph.Search(vector, fetch)

	results := make([]VectorResult, 0, k)
	for _, node := range nodes {
		id, live := h.keys[node.Key]
		if !live {
			continue
		}
		distance := h.graph.Distance(vector, node.Value)
		results = append(results, VectorResult{
			ID:    id,
			Score: 1 - float64(distance)/2,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete unmaps id. Reports whether the id was present.
func (h *HNSWIndex) Delete(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	key, exists := h.ids[id]
	if !exists {
		return false
	}
	delete(h.ids, id)
	delete(h.keys, key)
	return true
}

// Count returns the number of live vectors.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ids)
}

// Contains reports whether id has a live vector.
func (h *HNSWIndex) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.ids[id]
	return exists
}

type hnswMetadata struct {
	Dims    int
	NextKey uint64
	IDs     map[string]uint64
}

// Save writes the graph and id mappings to disk atomically. A no-op for
// memory-only indexes.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	if h.path == "" {
		return nil
	}

	tmpGraph := h.path + ".tmp"
	file, err := os.Create(tmpGraph)
	if err != nil {
		return fmt.Errorf("creating graph file: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := h.graph.Export(w); err != nil {
		file.Close()
		os.Remove(tmpGraph)
		return fmt.Errorf("exporting graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tmpGraph)
		return fmt.Errorf("flushing graph file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpGraph)
		return fmt.Errorf("closing graph file: %w", err)
	}

	metaPath := h.path + ".meta"
	tmpMeta := metaPath + ".tmp"
	metaFile, err := os.Create(tmpMeta)
	if err != nil {
		os.Remove(tmpGraph)
		return fmt.Errorf("creating metadata file: %w", err)
	}
	meta := hnswMetadata{Dims: h.dims, NextKey: h.nextKey, IDs: h.ids}
	if err := gob.NewEncoder(metaFile).Encode(&meta); err != nil {
		metaFile.Close()
		os.Remove(tmpGraph)
		os.Remove(tmpMeta)
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(tmpGraph)
		os.Remove(tmpMeta)
		return fmt.Errorf("closing metadata file: %w", err)
	}

	if err := os.Rename(tmpGraph, h.path); err != nil {
		os.Remove(tmpGraph)
		os.Remove(tmpMeta)
		return fmt.Errorf("replacing graph file: %w", err)
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		os.Remove(tmpMeta)
		return fmt.Errorf("replacing metadata file: %w", err)
	}
	return nil
}

func (h *HNSWIndex) load() error {
	file, err := os.Open(h.path)
	if err != nil {
		return fmt.Errorf("opening graph file: %w", err)
	}
	defer file.Close()

	// Import requires an io.ByteReader.
	if err := h.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("importing graph: %w", err)
	}

	metaFile, err := os.Open(h.path + ".meta")
	if err != nil {
		return fmt.Errorf("opening metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}

	h.dims = meta.Dims
	h.nextKey = meta.NextKey
	h.ids = meta.IDs
	if h.ids == nil {
		h.ids = make(map[string]uint64)
	}
	h.keys = make(map[uint64]string, len(h.ids))
	for id, key := range h.ids {
		h.keys[key] = id
	}
	return nil
}

// Close marks the index closed. It does not save; callers save explicitly.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
