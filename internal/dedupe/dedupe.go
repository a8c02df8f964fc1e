// Package dedupe collapses duplicate and near-duplicate candidates after
// fusion, keeping the highest-scoring variant of each cluster.
package dedupe

import (
	"github.com/ohmbase/regsearch/internal/store"
)

const (
	// DefaultJaccardThreshold is the content similarity above which two
	// candidates with the same id are considered the same result.
	DefaultJaccardThreshold = 0.9

	// DefaultSectionPrefixLen is how much of the section string
	// participates in exact-duplicate identity.
	DefaultSectionPrefixLen = 30
)

// Deduper removes duplicates in two passes: exact identity on
// (id, section prefix), then near-identical content among candidates
// sharing a logical id. Both passes keep the higher-scoring member, so
// running the result through again changes nothing.
type Deduper struct {
	threshold float64
	prefixLen int
}

func New(threshold float64, prefixLen int) *Deduper {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultJaccardThreshold
	}
	if prefixLen <= 0 {
		prefixLen = DefaultSectionPrefixLen
	}
	return &Deduper{threshold: threshold, prefixLen: prefixLen}
}

// Dedupe returns the deduplicated list, preserving input order of the
// surviving candidates. A non-empty input never becomes empty.
func (d *Deduper) Dedupe(candidates []*store.Candidate) []*store.Candidate {
	if len(candidates) <= 1 {
		return candidates
	}

	exact := d.exactPass(candidates)
	return d.nearDuplicatePass(exact)
}

// exactPass drops candidates with identical (id, section prefix),
// keeping the higher-scoring one in the earlier position.
func (d *Deduper) exactPass(candidates []*store.Candidate) []*store.Candidate {
	byKey := make(map[string]*store.Candidate, len(candidates))
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		key := c.ID + "\x00" + prefix(c.Section, d.prefixLen)
		current, seen := byKey[key]
		if !seen {
			byKey[key] = c
			order = append(order, key)
			continue
		}
		if rankingScore(c) > rankingScore(current) {
			byKey[key] = c
		}
	}

	result := make([]*store.Candidate, 0, len(order))
	for _, key := range order {
		result = append(result, byKey[key])
	}
	return result
}

// nearDuplicatePass compares content between candidates sharing a logical
// id and discards the lower-scoring one when word-set similarity crosses
// the threshold.
func (d *Deduper) nearDuplicatePass(candidates []*store.Candidate) []*store.Candidate {
	dropped := make([]bool, len(candidates))
	tokens := make([]map[string]struct{}, len(candidates))
	wordSet := func(i int) map[string]struct{} {
		if tokens[i] == nil {
			set := make(map[string]struct{})
			for _, tok := range store.TokenizeRegulation(candidates[i].Content) {
				set[tok] = struct{}{}
			}
			tokens[i] = set
		}
		return tokens[i]
	}

	for i := range candidates {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if dropped[j] || candidates[j].ID != candidates[i].ID {
				continue
			}
			if jaccard(wordSet(i), wordSet(j)) < d.threshold {
				continue
			}
			if rankingScore(candidates[j]) > rankingScore(candidates[i]) {
				dropped[i] = true
				break
			}
			dropped[j] = true
		}
	}

	result := make([]*store.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if !dropped[i] {
			result = append(result, c)
		}
	}
	return result
}

// rankingScore prefers the final score once the reranker has run; before
// that the fused hybrid score is the ranking signal.
func rankingScore(c *store.Candidate) float64 {
	if c.FinalScore > 0 {
		return c.FinalScore
	}
	return c.HybridScore
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
