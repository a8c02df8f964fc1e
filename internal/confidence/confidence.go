// Package confidence scores how much trust each ranked result deserves,
// combining retrieval signals into a single banded level.
package confidence

import (
	"strings"

	"github.com/ohmbase/regsearch/internal/store"
)

// Level is the categorical confidence band.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Factor weights. The cross-encoder dominates because it is the only
// query-aware signal; the rest are retrieval-time or static.
const (
	DefaultSimilarityWeight     = 0.25
	DefaultKeywordOverlapWeight = 0.20
	DefaultCrossEncoderWeight   = 0.35
	DefaultAuthorityWeight      = 0.10
	DefaultImportanceWeight     = 0.10
)

// Band boundaries. These are a documented contract relied on by callers
// that branch on the level, not tuning values.
const (
	highBand   = 0.85
	softBand   = 0.70
	mediumBand = 0.55
)

// FactorBreakdown records each factor's raw (unweighted) value.
type FactorBreakdown struct {
	Similarity     float64 `json:"similarity"`
	KeywordOverlap float64 `json:"keywordOverlap"`
	CrossEncoder   float64 `json:"crossEncoderScore"`
	Authority      float64 `json:"authorityWeight"`
	Importance     float64 `json:"importanceWeight"`
}

// Metrics is the per-result confidence assessment.
type Metrics struct {
	Overall   float64         `json:"overall"`
	Factors   FactorBreakdown `json:"factorBreakdown"`
	Level     Level           `json:"level"`
	Reasoning string          `json:"reasoning"`
}

// Weights configures the factor blend. Zero values fall back to defaults.
type Weights struct {
	Similarity     float64
	KeywordOverlap float64
	CrossEncoder   float64
	Authority      float64
	Importance     float64
}

func (w *Weights) applyDefaults() {
	if w.Similarity <= 0 {
		w.Similarity = DefaultSimilarityWeight
	}
	if w.KeywordOverlap <= 0 {
		w.KeywordOverlap = DefaultKeywordOverlapWeight
	}
	if w.CrossEncoder <= 0 {
		w.CrossEncoder = DefaultCrossEncoderWeight
	}
	if w.Authority <= 0 {
		w.Authority = DefaultAuthorityWeight
	}
	if w.Importance <= 0 {
		w.Importance = DefaultImportanceWeight
	}
}

// DefaultImportantClauses are load-bearing identifiers that warrant a
// fixed boost: the regulations an electrician is most often actually
// asking about, whatever the query wording.
var DefaultImportantClauses = []string{
	"411.3.3",     // additional RCD protection for socket-outlets
	"701.411.3.3", // RCD protection in bath/shower locations
	"701.415.2",   // supplementary bonding in bathrooms
	"722.411.4.1", // EV charging earthing arrangements
	"411.5.3",     // TT system disconnection
	"525.1",       // voltage drop limits
	"311.1",       // maximum demand and diversity
	"543.1.1",     // protective conductor sizing
}

var overlapStopWords = store.BuildStopWordMap([]string{
	"the", "and", "for", "with", "from", "that", "this", "what",
	"when", "where", "which", "shall", "should", "must", "have",
	"been", "will", "does", "need", "about", "into", "over",
})

// Scorer computes per-result confidence metrics.
type Scorer struct {
	weights   Weights
	important []string
}

// NewScorer builds a scorer. A nil clause list uses the default
// allowlist.
func NewScorer(weights Weights, importantClauses []string) *Scorer {
	weights.applyDefaults()
	if importantClauses == nil {
		importantClauses = DefaultImportantClauses
	}
	return &Scorer{weights: weights, important: importantClauses}
}

// Score computes confidence for one candidate against the query text.
func (s *Scorer) Score(c *store.Candidate, queryText string) Metrics {
	factors := FactorBreakdown{
		Similarity:     clamp01(c.Similarity),
		KeywordOverlap: s.keywordOverlap(queryText, c.Content),
		CrossEncoder:   clamp01(c.CrossEncoderScore),
		Authority:      authorityWeight(c.AuthorityTag),
		Importance:     s.importanceWeight(c),
	}

	overall := factors.Similarity*s.weights.Similarity +
		factors.KeywordOverlap*s.weights.KeywordOverlap +
		factors.CrossEncoder*s.weights.CrossEncoder +
		factors.Authority*s.weights.Authority +
		factors.Importance*s.weights.Importance

	level, reasoning := Band(overall)
	return Metrics{
		Overall:   overall,
		Factors:   factors,
		Level:     level,
		Reasoning: reasoning,
	}
}

// Band maps an overall score to its level and reasoning string.
func Band(overall float64) (Level, string) {
	switch {
	case overall > highBand:
		return LevelHigh, "directly addresses query"
	case overall > softBand:
		return LevelHigh, "strong match for query"
	case overall > mediumBand:
		return LevelMedium, "relevant but may not fully address query"
	default:
		return LevelLow, "tangentially related to query"
	}
}

// Average returns the mean overall score, 0 for an empty slice.
func Average(metrics []Metrics) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sum float64
	for _, m := range metrics {
		sum += m.Overall
	}
	return sum / float64(len(metrics))
}

// keywordOverlap is the fraction of substantive query terms (longer than
// three characters, stop words excluded) that appear in the content.
func (s *Scorer) keywordOverlap(queryText, content string) float64 {
	var queryTerms []string
	for _, tok := range store.TokenizeRegulation(queryText) {
		if len(tok) <= 3 {
			continue
		}
		if _, stop := overlapStopWords[tok]; stop {
			continue
		}
		queryTerms = append(queryTerms, tok)
	}
	if len(queryTerms) == 0 {
		return 0
	}

	contentSet := make(map[string]struct{})
	for _, tok := range store.TokenizeRegulation(content) {
		contentSet[tok] = struct{}{}
	}

	matched := 0
	for _, term := range queryTerms {
		if _, ok := contentSet[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// authorityWeight maps the authority tag to a boost. Current-edition
// statutory and normative text scores higher than guidance.
func authorityWeight(tag string) float64 {
	switch tag {
	case store.AuthorityStatutory:
		return 1.0
	case store.AuthorityNormative:
		return 0.9
	case store.AuthorityGuidance:
		return 0.6
	default:
		return 0.5
	}
}

func (s *Scorer) importanceWeight(c *store.Candidate) float64 {
	for _, clause := range s.important {
		if strings.Contains(c.ID, clause) || strings.Contains(c.Section, clause) {
			return 1.0
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
