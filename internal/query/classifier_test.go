package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func classify(t *testing.T, queryText string) Intent {
	t.Helper()
	p := NewParser()
	c := NewRuleClassifier()
	return c.Classify(queryText, p.Parse(queryText))
}

func TestClassify_StructuralSignalWins(t *testing.T) {
	// Power and distance present makes it a design question, even though
	// the phrasing would otherwise match the explanation rule.
	assert.Equal(t, IntentDesign, classify(t, "how do I wire a 9.5kW shower with a 15m run"))
}

func TestClassify_DesignKeywords(t *testing.T) {
	assert.Equal(t, IntentDesign, classify(t, "what size cable for a cooker"))
	assert.Equal(t, IntentDesign, classify(t, "voltage drop on a long lighting circuit"))
	assert.Equal(t, IntentDesign, classify(t, "mcb rating for an immersion heater"))
}

func TestClassify_RegulationLookup(t *testing.T) {
	assert.Equal(t, IntentLookup, classify(t, "411.3.3 disconnection times"))
	assert.Equal(t, IntentLookup, classify(t, "show me Table 4D5"))
	assert.Equal(t, IntentLookup, classify(t, "BS 7671 requirements for bonding"))
}

func TestClassify_Comparison(t *testing.T) {
	assert.Equal(t, IntentCompare, classify(t, "rcbo vs rcd plus mcb"))
	assert.Equal(t, IntentCompare, classify(t, "difference between bonding and earthing"))
}

func TestClassify_Explanation(t *testing.T) {
	assert.Equal(t, IntentExplain, classify(t, "why is supplementary bonding needed"))
	assert.Equal(t, IntentExplain, classify(t, "what does adiabatic mean"))
}

func TestClassify_DefaultGeneral(t *testing.T) {
	assert.Equal(t, IntentGeneral, classify(t, "shower regulations"))
	assert.Equal(t, IntentGeneral, classify(t, ""))
}

func TestClassify_RuleOrdering(t *testing.T) {
	// A regulation reference beats comparison wording.
	assert.Equal(t, IntentLookup, classify(t, "compare 411.3.3 with the old edition"))

	// Comparison wording beats explanation wording.
	assert.Equal(t, IntentCompare, classify(t, "explain the difference between TN-S and TT"))
}

func TestClassify_Deterministic(t *testing.T) {
	p := NewParser()
	c := NewRuleClassifier()
	queryText := "what size cable for a 7.2kW cooker"
	entities := p.Parse(queryText)

	first := c.Classify(queryText, entities)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(queryText, entities))
	}
}

func TestClassify_CacheNormalizesQuery(t *testing.T) {
	c := NewRuleClassifier()
	entities := ParsedEntities{}

	assert.Equal(t, c.Classify("Why is bonding needed", entities),
		c.Classify("  why is bonding needed  ", entities))
}
