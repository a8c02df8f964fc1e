// Package fusion merges candidate lists from the primary and secondary
// retrieval calls into one ranked list.
package fusion

import (
	"sort"

	"github.com/ohmbase/regsearch/internal/store"
)

// Default call weights. The primary call carries the user's own wording;
// secondary calls probe safety and installation concerns and only
// reinforce, never dominate.
const (
	DefaultFusedLimit   = 15
	PrimaryCallWeight   = 1.0
	SecondaryCallWeight = 0.5
)

// Call roles.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// CallResult is the output of one retrieval call entering fusion.
type CallResult struct {
	Role       string
	Weight     float64
	Candidates []*store.Candidate
}

// Fuser accumulates weighted scores per candidate id across calls.
type Fuser struct {
	// Limit caps the fused list. Zero means DefaultFusedLimit.
	Limit int
}

func NewFuser(limit int) *Fuser {
	if limit <= 0 {
		limit = DefaultFusedLimit
	}
	return &Fuser{Limit: limit}
}

type fusedEntry struct {
	candidate     *store.Candidate
	score         float64
	seenByPrimary bool
}

// Fuse merges call results. Each candidate's fused score is the sum of
// hybridScore times call weight over every call that returned it.
// Candidates the primary call never saw are kept but sorted behind all
// primary-seen candidates regardless of score: a secondary probe alone
// must not put a result ahead of everything the user actually asked for.
func (f *Fuser) Fuse(calls []CallResult) []*store.Candidate {
	entries := make(map[string]*fusedEntry)

	for _, call := range calls {
		weight := call.Weight
		if weight <= 0 {
			weight = 1.0
		}
		for _, c := range call.Candidates {
			entry, ok := entries[c.ID]
			if !ok {
				clone := *c
				entry = &fusedEntry{candidate: &clone}
				entries[c.ID] = entry
			}
			entry.score += c.HybridScore * weight
			if call.Role == RolePrimary {
				entry.seenByPrimary = true
			}
			// Keep the strongest semantic evidence seen for the id.
			if c.Similarity > entry.candidate.Similarity {
				entry.candidate.Similarity = c.Similarity
			}
		}
	}

	results := make([]*store.Candidate, 0, len(entries))
	ordered := make([]*fusedEntry, 0, len(entries))
	for _, entry := range entries {
		entry.candidate.HybridScore = entry.score
		ordered = append(ordered, entry)
	}

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.seenByPrimary != b.seenByPrimary {
			return a.seenByPrimary
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.candidate.ID < b.candidate.ID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultFusedLimit
	}
	for i, entry := range ordered {
		if i == limit {
			break
		}
		results = append(results, entry.candidate)
	}
	return results
}
