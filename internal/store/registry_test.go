package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearchStore struct {
	name       string
	candidates []*Candidate
	err        error
}

func (f *fakeSearchStore) Name() string { return f.name }
func (f *fakeSearchStore) HybridSearch(ctx context.Context, query string, k int) ([]*Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*Candidate, len(f.candidates))
	for i, c := range f.candidates {
		clone := *c
		out[i] = &clone
	}
	return out, nil
}
func (f *fakeSearchStore) Close() error { return nil }

func TestRegistryAppliesStoreWeights(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSearchStore{name: "regs", candidates: []*Candidate{
		{ID: "r1", HybridScore: 0.8},
	}}, 0.95)
	r.Register(&fakeSearchStore{name: "guidance", candidates: []*Candidate{
		{ID: "g1", HybridScore: 0.9},
	}}, 0.90)

	results, err := r.HybridSearch(context.Background(), "rcd protection", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 0.9*0.90 = 0.81 beats 0.8*0.95 = 0.76.
	assert.Equal(t, "g1", results[0].ID)
	assert.InDelta(t, 0.81, results[0].HybridScore, 1e-9)
	assert.Equal(t, "r1", results[1].ID)
	assert.InDelta(t, 0.76, results[1].HybridScore, 1e-9)
}

func TestRegistrySkipsFailingStore(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSearchStore{name: "broken", err: errors.New("index offline")}, 1.0)
	r.Register(&fakeSearchStore{name: "healthy", candidates: []*Candidate{
		{ID: "h1", HybridScore: 0.7},
	}}, 1.0)

	results, err := r.HybridSearch(context.Background(), "bonding", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "h1", results[0].ID)
}

func TestRegistryAllStoresFailing(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSearchStore{name: "a", err: errors.New("down")}, 1.0)
	r.Register(&fakeSearchStore{name: "b", err: errors.New("also down")}, 1.0)

	_, err := r.HybridSearch(context.Background(), "bonding", 10)
	assert.Error(t, err)
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry(nil)
	results, err := r.HybridSearch(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRegistryTruncatesToK(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSearchStore{name: "s", candidates: []*Candidate{
		{ID: "a", HybridScore: 0.9},
		{ID: "b", HybridScore: 0.8},
		{ID: "c", HybridScore: 0.7},
	}}, 1.0)

	results, err := r.HybridSearch(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSearchStore{name: "regs"}, 0.95)

	s, weight, ok := r.Store("regs")
	require.True(t, ok)
	assert.Equal(t, "regs", s.Name())
	assert.Equal(t, 0.95, weight)

	_, _, ok = r.Store("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"regs"}, r.Names())
}

func TestRegistryWeightClamped(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSearchStore{name: "s", candidates: []*Candidate{
		{ID: "a", HybridScore: 0.5},
	}}, 1.7)

	results, err := r.HybridSearch(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].HybridScore, 1e-9)
}
