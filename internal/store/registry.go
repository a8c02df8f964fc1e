package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry fans a query out across named stores and merges the results,
// scaling each store's scores by its configured weight. It satisfies
// SearchStore itself so the pipeline does not care whether it is talking
// to one corpus or several.
type Registry struct {
	mu     sync.RWMutex
	stores []weightedStore
	logger *slog.Logger
}

type weightedStore struct {
	store  SearchStore
	weight float64
}

var _ SearchStore = (*Registry)(nil)

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a store. A weight outside (0, 1] is clamped to 1.
func (r *Registry) Register(s SearchStore, weight float64) {
	if weight <= 0 || weight > 1 {
		weight = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = append(r.stores, weightedStore{store: s, weight: weight})
}

// Store returns the named store and its weight.
func (r *Registry) Store(name string) (SearchStore, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ws := range r.stores {
		if ws.store.Name() == name {
			return ws.store, ws.weight, true
		}
	}
	return nil, 0, false
}

// Names lists registered stores in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.stores))
	for i, ws := range r.stores {
		names[i] = ws.store.Name()
	}
	return names
}

func (r *Registry) Name() string { return "registry" }

// HybridSearch queries every store concurrently. A failing store is
// logged and skipped; the query only errors when no store answered.
func (r *Registry) HybridSearch(ctx context.Context, query string, k int) ([]*Candidate, error) {
	r.mu.RLock()
	stores := make([]weightedStore, len(r.stores))
	copy(stores, r.stores)
	r.mu.RUnlock()

	if len(stores) == 0 || k <= 0 {
		return nil, nil
	}

	perStore := make([][]*Candidate, len(stores))
	storeErrs := make([]error, len(stores))

	g, gctx := errgroup.WithContext(ctx)
	for i, ws := range stores {
		g.Go(func() error {
			candidates, err := ws.store.HybridSearch(gctx, query, k)
			if err != nil {
				r.logger.Warn("store unavailable, continuing without it",
					"store", ws.store.Name(), "error", err)
				storeErrs[i] = err
				return nil
			}
			for _, c := range candidates {
				c.HybridScore *= ws.weight
			}
			perStore[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []*Candidate
	answered := false
	for i := range stores {
		if storeErrs[i] == nil {
			answered = true
		}
		merged = append(merged, perStore[i]...)
	}
	if !answered {
		return nil, fmt.Errorf("all stores failed: %w", errors.Join(storeErrs...))
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].HybridScore != merged[j].HybridScore {
			return merged[i].HybridScore > merged[j].HybridScore
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// Close closes every registered store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, ws := range r.stores {
		if err := ws.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", ws.store.Name(), err))
		}
	}
	r.stores = nil
	return errors.Join(errs...)
}
