package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decompose(t *testing.T, queryText string) Components {
	t.Helper()
	p := NewParser()
	d := NewDecomposer(NewRuleClassifier())
	return d.Decompose(queryText, p.Parse(queryText))
}

func TestDecompose_ShowerScenario(t *testing.T) {
	components := decompose(t, "9.5kW shower, 15m cable run")

	assert.Equal(t, IntentDesign, components.Primary.Type)
	assert.Equal(t, "shower", components.Primary.Entities.LoadType)

	// The shower load implies a bathroom, which adds a safety concern.
	require.NotEmpty(t, components.Secondary)
	assert.Equal(t, "safety", components.Secondary[0].Type)
	assert.Equal(t, PrioritySafety, components.Secondary[0].Priority)
	assert.Contains(t, components.Secondary[0].Keywords, "supplementary bonding")

	// Implicit refs include the bathroom section identifiers.
	assert.Contains(t, components.Implicit.RegulationIDs, "701.411.3.3")
	// 9.5kW is above the diversity threshold.
	assert.Contains(t, components.Implicit.RegulationIDs, "311.1")
	assert.Contains(t, components.Implicit.TableIDs, "1B")
	// A cable run brings in the voltage drop references.
	assert.Contains(t, components.Implicit.TableIDs, "4Ab")
	assert.Contains(t, components.Implicit.StandardIDs, "BS 7671")
}

func TestDecompose_ConcernOrdering(t *testing.T) {
	// Bathroom + RCD + insulation constraint + power produces all four
	// concern types, sorted descending by priority.
	components := decompose(t, "7.2kW shower in the bathroom, rcd, cable in thermal insulation")

	var types []string
	var priorities []int
	for _, c := range components.Secondary {
		types = append(types, c.Type)
		priorities = append(priorities, c.Priority)
	}

	assert.Equal(t, []string{"safety", "protection", "installation", "sizing"}, types)
	assert.Equal(t, []int{9, 8, 7, 6}, priorities)
}

func TestDecompose_NoEntitiesNoConcerns(t *testing.T) {
	components := decompose(t, "general wiring question")

	assert.Equal(t, IntentGeneral, components.Primary.Type)
	assert.Empty(t, components.Secondary)
	assert.Empty(t, components.Implicit.RegulationIDs)
	assert.Empty(t, components.Implicit.StandardIDs)
}

func TestDecompose_ProtectionStandards(t *testing.T) {
	components := decompose(t, "do I need an rcbo with surge protection here")

	assert.Contains(t, components.Implicit.StandardIDs, "BS EN 61009")
	assert.Contains(t, components.Implicit.StandardIDs, "BS EN 61643")
}

func TestDecompose_EVCharger(t *testing.T) {
	components := decompose(t, "ev charger on a TT supply")

	assert.Contains(t, components.Implicit.RegulationIDs, "722.411.4.1")
	assert.Contains(t, components.Implicit.RegulationIDs, "411.5.3")
}

func TestDecompose_ExplicitLocationBeatsImplied(t *testing.T) {
	components := decompose(t, "9.5kW shower fed from the garage consumer unit")

	require.NotEmpty(t, components.Secondary)
	assert.Equal(t, "safety", components.Secondary[0].Type)
	assert.Contains(t, components.Secondary[0].Keywords, "damp location")
}

func TestDecompose_BelowDiversityThreshold(t *testing.T) {
	components := decompose(t, "3kW immersion heater")

	assert.NotContains(t, components.Implicit.RegulationIDs, "311.1")
}

func TestDecompose_InstallMethodAddsInstallationConcern(t *testing.T) {
	components := decompose(t, "run the cable in conduit")

	require.Len(t, components.Secondary, 1)
	assert.Equal(t, "installation", components.Secondary[0].Type)
	assert.Contains(t, components.Secondary[0].Keywords, "conduit")
}
