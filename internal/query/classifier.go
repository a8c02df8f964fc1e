package query

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultClassifierCacheSize is the LRU cache size for classification
// results.
const DefaultClassifierCacheSize = 10000

// Classifier determines query intent from text and parsed entities.
type Classifier interface {
	Classify(queryText string, entities ParsedEntities) Intent
}

// RuleClassifier classifies queries with an ordered priority list of
// rules; the first matching rule wins. The ordering is part of the
// behavioral contract:
//
//  1. structural signal (power and distance both present) -> design
//  2. explicit design keyword -> design
//  3. regulation-number pattern -> lookup
//  4. comparison words -> compare
//  5. explanation words -> explain
//  6. default -> general
//
// Results are cached in an LRU cache keyed on the normalized query.
type RuleClassifier struct {
	designKeywords    []string
	regulationPattern *regexp.Regexp
	tablePattern      *regexp.Regexp
	standardPattern   *regexp.Regexp
	comparePattern    *regexp.Regexp
	explainPattern    *regexp.Regexp
	cache             *lru.Cache[string, Intent]
}

// NewRuleClassifier creates a classifier with the default rule set.
func NewRuleClassifier() *RuleClassifier {
	cache, _ := lru.New[string, Intent](DefaultClassifierCacheSize)
	return &RuleClassifier{
		designKeywords: []string{
			"cable size", "what size", "which cable", "csa",
			"current carrying capacity", "current-carrying capacity",
			"voltage drop", "mcb rating", "breaker size",
			"protective device", "cable calculation", "design the circuit",
		},
		// Matches clause references like 411.3.3 or 701.512.3
		regulationPattern: regexp.MustCompile(`\b\d{3}(?:\.\d+)+\b`),
		// Matches table references like "Table 4D5" or "table 54.7"
		tablePattern: regexp.MustCompile(`(?i)\btable\s+[0-9][0-9a-z.]*\b`),
		// Matches standard references like "BS 7671" or "BS EN 61008"
		standardPattern: regexp.MustCompile(`(?i)\bbs\s*(?:en\s*)?\d{4,5}\b`),
		comparePattern: regexp.MustCompile(
			`(?i)\b(?:vs\.?|versus|compare[ds]?|comparison|difference between|better than|or should i)\b`),
		explainPattern: regexp.MustCompile(
			`(?i)(?:^(?:why|how|explain)\b|\bwhat does\b|\bwhat is\b|\bexplain\b|\bmeaning of\b)`),
		cache: cache,
	}
}

// Classify determines the query intent. Deterministic for a fixed query.
func (c *RuleClassifier) Classify(queryText string, entities ParsedEntities) Intent {
	text := strings.ToLower(strings.TrimSpace(queryText))
	if text == "" {
		return IntentGeneral
	}

	if cached, ok := c.cache.Get(text); ok {
		return cached
	}

	intent := c.classify(text, entities)
	c.cache.Add(text, intent)
	return intent
}

func (c *RuleClassifier) classify(text string, entities ParsedEntities) Intent {
	// Rule 1: structural signal. A load power together with a cable run
	// is a circuit design question regardless of phrasing.
	if entities.HasPower() && entities.HasDistance() {
		return IntentDesign
	}

	// Rule 2: explicit design keywords.
	for _, kw := range c.designKeywords {
		if strings.Contains(text, kw) {
			return IntentDesign
		}
	}

	// Rule 3: regulation, table, or standard references.
	if c.regulationPattern.MatchString(text) ||
		c.tablePattern.MatchString(text) ||
		c.standardPattern.MatchString(text) {
		return IntentLookup
	}

	// Rule 4: comparison words.
	if c.comparePattern.MatchString(text) {
		return IntentCompare
	}

	// Rule 5: explanation words.
	if c.explainPattern.MatchString(text) {
		return IntentExplain
	}

	return IntentGeneral
}

// Ensure RuleClassifier implements Classifier.
var _ Classifier = (*RuleClassifier)(nil)
