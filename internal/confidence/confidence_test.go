package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohmbase/regsearch/internal/store"
)

func TestBandBoundaries(t *testing.T) {
	tests := []struct {
		overall   float64
		level     Level
		reasoning string
	}{
		{0.86, LevelHigh, "directly addresses query"},
		{0.95, LevelHigh, "directly addresses query"},
		{0.85, LevelHigh, "strong match for query"},
		{0.71, LevelHigh, "strong match for query"},
		{0.70, LevelMedium, "relevant but may not fully address query"},
		{0.60, LevelMedium, "relevant but may not fully address query"},
		{0.55, LevelLow, "tangentially related to query"},
		{0.40, LevelLow, "tangentially related to query"},
		{0.0, LevelLow, "tangentially related to query"},
	}

	for _, tt := range tests {
		level, reasoning := Band(tt.overall)
		assert.Equal(t, tt.level, level, "overall=%v", tt.overall)
		assert.Equal(t, tt.reasoning, reasoning, "overall=%v", tt.overall)
	}
}

func TestScoreAllFactorsMaximal(t *testing.T) {
	s := NewScorer(Weights{}, nil)

	c := &store.Candidate{
		ID:                "bs7671:701.411.3.3",
		Section:           "701.411.3.3",
		Content:           "shower circuit protection bathroom",
		AuthorityTag:      store.AuthorityStatutory,
		Similarity:        1.0,
		CrossEncoderScore: 1.0,
	}

	m := s.Score(c, "shower circuit protection bathroom")
	assert.InDelta(t, 1.0, m.Overall, 1e-9)
	assert.Equal(t, LevelHigh, m.Level)
	assert.Equal(t, "directly addresses query", m.Reasoning)
	assert.InDelta(t, 1.0, m.Factors.KeywordOverlap, 1e-9)
	assert.InDelta(t, 1.0, m.Factors.Importance, 1e-9)
}

func TestScoreFactorWeights(t *testing.T) {
	s := NewScorer(Weights{}, []string{})

	// Only similarity contributes beyond the default authority weight.
	c := &store.Candidate{
		ID:         "gn:1",
		Similarity: 0.8,
	}
	m := s.Score(c, "")

	// 0.8*0.25 + 0*0.20 + 0*0.35 + 0.5*0.10 + 0*0.10
	assert.InDelta(t, 0.8*0.25+0.5*0.10, m.Overall, 1e-9)
	assert.Equal(t, LevelLow, m.Level)
}

func TestKeywordOverlapFiltersShortAndStopWords(t *testing.T) {
	s := NewScorer(Weights{}, nil)

	// "what", "the", "for" are stop words; "rcd" is too short to count.
	c := &store.Candidate{Content: "voltage drop limits apply to lighting circuits"}
	m := s.Score(c, "what is the voltage drop limit for rcd lighting")

	// Substantive terms: voltage, drop... "drop" is 4 chars, counts.
	// voltage (yes), drop (yes), limit (no, content has limits), lighting (yes).
	assert.InDelta(t, 3.0/4.0, m.Factors.KeywordOverlap, 1e-9)
}

func TestAuthorityWeighting(t *testing.T) {
	s := NewScorer(Weights{}, []string{})

	statutory := s.Score(&store.Candidate{AuthorityTag: store.AuthorityStatutory}, "")
	guidance := s.Score(&store.Candidate{AuthorityTag: store.AuthorityGuidance}, "")
	untagged := s.Score(&store.Candidate{}, "")

	assert.Greater(t, statutory.Overall, guidance.Overall)
	assert.Greater(t, guidance.Overall, untagged.Overall)
}

func TestImportanceAllowlist(t *testing.T) {
	s := NewScorer(Weights{}, nil)

	boosted := s.Score(&store.Candidate{ID: "bs7671:411.3.3"}, "")
	plain := s.Score(&store.Candidate{ID: "bs7671:132.16"}, "")
	assert.InDelta(t, 0.10, boosted.Overall-plain.Overall, 1e-9)

	// Section text also matches the allowlist.
	bySection := s.Score(&store.Candidate{ID: "doc-7", Section: "Table for 525.1"}, "")
	assert.InDelta(t, 1.0, bySection.Factors.Importance, 1e-9)
}

func TestAverage(t *testing.T) {
	assert.Zero(t, Average(nil))

	avg := Average([]Metrics{{Overall: 0.8}, {Overall: 0.6}, {Overall: 0.7}})
	assert.InDelta(t, 0.7, avg, 1e-9)
}

func TestScoreClampsOutOfRangeInputs(t *testing.T) {
	s := NewScorer(Weights{}, []string{})

	c := &store.Candidate{Similarity: 1.7, CrossEncoderScore: -0.3}
	m := s.Score(c, "")
	require.InDelta(t, 1.0, m.Factors.Similarity, 1e-9)
	require.Zero(t, m.Factors.CrossEncoder)
}
