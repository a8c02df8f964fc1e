// Package query parses free-text electrical queries into structured
// entities, classifies their intent, and decomposes them into weighted
// search concerns for the retrieval pipeline.
package query

// Intent represents the classified intent of a query.
type Intent string

const (
	// IntentDesign covers circuit design questions (cable sizing,
	// protective device selection, voltage drop).
	IntentDesign Intent = "design"

	// IntentLookup covers direct regulation or table references.
	IntentLookup Intent = "lookup"

	// IntentCompare covers questions weighing two or more options.
	IntentCompare Intent = "compare"

	// IntentExplain covers conceptual "why/how" questions.
	IntentExplain Intent = "explain"

	// IntentGeneral is the fallback when no other rule matches.
	IntentGeneral Intent = "general"
)

// String returns the string representation of the intent.
func (i Intent) String() string {
	return string(i)
}

// Phases represents the supply phase arrangement.
type Phases string

const (
	PhasesSingle Phases = "single"
	PhasesThree  Phases = "three"
)

// ParsedEntities holds the structured attributes extracted from a query.
// All fields are optional; zero values mean the attribute was absent.
// Instances are produced once per query and never mutated afterward.
type ParsedEntities struct {
	// LoadType is the appliance or load category (shower, cooker, ...).
	LoadType string `json:"loadType,omitempty"`

	// Power is the load power in watts.
	Power int `json:"power,omitempty"`

	// Distance is the cable run length in metres.
	Distance float64 `json:"distance,omitempty"`

	// Voltage is the nominal supply voltage in volts.
	Voltage int `json:"voltage,omitempty"`

	// Phases is the supply phase arrangement.
	Phases Phases `json:"phases,omitempty"`

	// InstallMethod is the cable installation method (clipped direct,
	// conduit, trunking, buried, ...).
	InstallMethod string `json:"installMethod,omitempty"`

	// AmbientTemp is the ambient temperature in degrees Celsius.
	AmbientTemp int `json:"ambientTemp,omitempty"`

	// Location is the install location (bathroom, kitchen, outdoor, ...).
	Location string `json:"location,omitempty"`

	// EarthingSystem is the supply earthing arrangement (TN-S, TN-C-S, TT).
	EarthingSystem string `json:"earthingSystem,omitempty"`

	// SpecialRequirements lists protection requirements mentioned in the
	// query (rcd, rcbo, afdd, surge protection, ...).
	SpecialRequirements []string `json:"specialRequirements,omitempty"`

	// InstallationConstraints lists derating-relevant constraints
	// (thermal insulation, grouping, long run, ...).
	InstallationConstraints []string `json:"installationConstraints,omitempty"`
}

// HasPower returns true if a load power was extracted.
func (e ParsedEntities) HasPower() bool { return e.Power > 0 }

// HasDistance returns true if a cable run length was extracted.
func (e ParsedEntities) HasDistance() bool { return e.Distance > 0 }

// PrimaryUnit is the primary search unit of a decomposed query.
type PrimaryUnit struct {
	// Type is the classified intent of the query.
	Type Intent `json:"type"`

	// Entities are the structured attributes extracted from the query.
	Entities ParsedEntities `json:"entities"`
}

// Concern is a secondary search concern derived from the query.
type Concern struct {
	// Type names the concern (safety, protection, installation, sizing).
	Type string `json:"concernType"`

	// Keywords are the search terms for this concern's fan-out call.
	Keywords []string `json:"keywords"`

	// Priority orders concerns for fan-out. Higher runs first and is
	// eligible for fusion weighting ahead of lower priorities.
	Priority int `json:"priority"`
}

// ImplicitRefs holds must-check identifiers derived from entity values.
// They are advisory metadata for context building, not a result filter.
type ImplicitRefs struct {
	RegulationIDs []string `json:"regulationIds,omitempty"`
	StandardIDs   []string `json:"standardIds,omitempty"`
	TableIDs      []string `json:"tableIds,omitempty"`
}

// Components is the decomposed form of a query: the primary search unit,
// ordered secondary concerns, and implicit reference identifiers.
type Components struct {
	Primary   PrimaryUnit  `json:"primary"`
	Secondary []Concern    `json:"secondary"`
	Implicit  ImplicitRefs `json:"implicit"`
}
