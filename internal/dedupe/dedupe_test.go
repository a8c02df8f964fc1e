package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohmbase/regsearch/internal/store"
)

func TestDedupeExactDuplicates(t *testing.T) {
	d := New(0, 0)

	results := d.Dedupe([]*store.Candidate{
		{ID: "bs7671:701.411.3.3", Section: "701.411.3.3 Locations containing a bath", HybridScore: 0.9},
		{ID: "bs7671:701.411.3.3", Section: "701.411.3.3 Locations containing a bath or shower", HybridScore: 0.7},
		{ID: "bs7671:411.3.3", Section: "411.3.3", HybridScore: 0.8},
	})

	// First two share id and first-30-chars section prefix.
	require.Len(t, results, 2)
	assert.Equal(t, "bs7671:701.411.3.3", results[0].ID)
	assert.InDelta(t, 0.9, results[0].HybridScore, 1e-9)
	assert.Equal(t, "bs7671:411.3.3", results[1].ID)
}

func TestDedupeExactKeepsHigherScoringVariant(t *testing.T) {
	d := New(0, 0)

	results := d.Dedupe([]*store.Candidate{
		{ID: "x", Section: "s", HybridScore: 0.3, Content: "older copy"},
		{ID: "x", Section: "s", HybridScore: 0.8, Content: "better copy"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "better copy", results[0].Content)
}

func TestDedupeNearDuplicateContent(t *testing.T) {
	d := New(0, 0)

	a := &store.Candidate{
		ID:          "gn8:5.2",
		Section:     "Supplementary bonding",
		Content:     "Supplementary equipotential bonding connects exposed conductive parts and extraneous conductive parts within bathroom zones one and two together",
		HybridScore: 0.9,
	}
	b := &store.Candidate{
		ID:          "gn8:5.2",
		Section:     "Bonding in bathrooms",
		Content:     "Supplementary equipotential bonding connects exposed conductive parts and extraneous conductive parts within bathroom zones one and two",
		HybridScore: 0.6,
	}

	results := d.Dedupe([]*store.Candidate{a, b})
	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].HybridScore, 1e-9)
}

func TestDedupeDifferentIDsNeverMerged(t *testing.T) {
	d := New(0, 0)

	results := d.Dedupe([]*store.Candidate{
		{ID: "a", Content: "identical content here", HybridScore: 0.9},
		{ID: "b", Content: "identical content here", HybridScore: 0.8},
	})
	assert.Len(t, results, 2)
}

func TestDedupeDissimilarContentSameID(t *testing.T) {
	d := New(0, 0)

	results := d.Dedupe([]*store.Candidate{
		{ID: "x", Section: "part one", Content: "cable sizing for shower circuits", HybridScore: 0.9},
		{ID: "x", Section: "part two", Content: "earthing arrangements for outbuildings", HybridScore: 0.8},
	})
	assert.Len(t, results, 2)
}

func TestDedupeIdempotent(t *testing.T) {
	d := New(0, 0)

	input := []*store.Candidate{
		{ID: "a", Section: "s1", Content: "rcd protection for all circuits in the location", HybridScore: 0.9},
		{ID: "a", Section: "s1", Content: "rcd protection for all circuits in the location", HybridScore: 0.5},
		{ID: "b", Section: "s2", Content: "maximum disconnection times for final circuits", HybridScore: 0.7},
	}

	once := d.Dedupe(input)
	twice := d.Dedupe(once)

	require.Equal(t, len(once), len(twice))
	for i := range once {
		assert.Equal(t, once[i].ID, twice[i].ID)
		assert.Equal(t, once[i].HybridScore, twice[i].HybridScore)
	}
}

func TestDedupeNeverEmptiesNonEmptyInput(t *testing.T) {
	d := New(0, 0)

	results := d.Dedupe([]*store.Candidate{
		{ID: "x", Section: "s", Content: "same words entirely", HybridScore: 0.5},
		{ID: "x", Section: "s", Content: "same words entirely", HybridScore: 0.5},
		{ID: "x", Section: "s", Content: "same words entirely", HybridScore: 0.5},
	})
	assert.Len(t, results, 1)
}

func TestDedupeEmptyInput(t *testing.T) {
	d := New(0, 0)
	assert.Empty(t, d.Dedupe(nil))
	assert.Empty(t, d.Dedupe([]*store.Candidate{}))
}

func TestDedupePrefersFinalScoreWhenPresent(t *testing.T) {
	d := New(0, 0)

	results := d.Dedupe([]*store.Candidate{
		{ID: "x", Section: "s", HybridScore: 0.9, FinalScore: 0.4, Content: "loser"},
		{ID: "x", Section: "s", HybridScore: 0.2, FinalScore: 0.8, Content: "winner"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "winner", results[0].Content)
}
