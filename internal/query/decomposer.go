package query

import "sort"

// Concern priorities. Higher priority concerns run earlier in the
// fan-out and are eligible for fusion weighting ahead of lower ones.
const (
	PrioritySafety       = 9
	PriorityProtection   = 8
	PriorityInstallation = 7
	PrioritySizing       = 6
)

// DiversityPowerThreshold is the load power in watts above which
// diversity-factor references become must-check material.
const DiversityPowerThreshold = 7000

// Decomposer builds search components from a query and its entities.
type Decomposer struct {
	classifier Classifier
}

// NewDecomposer creates a decomposer using the given classifier.
func NewDecomposer(classifier Classifier) *Decomposer {
	return &Decomposer{classifier: classifier}
}

// safetyKeywords maps install locations to the search terms of their
// safety concern.
var safetyKeywords = map[string][]string{
	"bathroom": {"bathroom zones", "supplementary bonding", "rcd protection", "ip rating"},
	"kitchen":  {"kitchen circuits", "appliance sockets", "rcd protection"},
	"outdoor":  {"outdoor installation", "weatherproof enclosure", "rcd protection", "burial depth"},
	"pool":     {"swimming pool zones", "selv", "ip rating"},
	"sauna":    {"sauna installation", "heat resistant cable"},
	"loft":     {"thermal insulation", "cable derating"},
	"garage":   {"damp location", "rcd protection"},
	"basement": {"damp location", "rcd protection"},
}

// locationRegulations maps install locations to their must-check
// regulation identifiers.
var locationRegulations = map[string][]string{
	"bathroom": {"701.411.3.3", "701.415.2", "701.512.3"},
	"pool":     {"702.410.3.4", "702.55.1"},
	"sauna":    {"703.411.3.3"},
	"outdoor":  {"714.411.3.3"},
}

// requirementStandards maps protection requirements to their product
// standards.
var requirementStandards = map[string]string{
	"rcd":  "BS EN 61008",
	"rcbo": "BS EN 61009",
	"spd":  "BS EN 61643",
	"afdd": "BS EN 62606",
}

// Decompose builds the primary search unit, ordered secondary concerns,
// and implicit must-check references for a query.
func (d *Decomposer) Decompose(queryText string, entities ParsedEntities) Components {
	components := Components{
		Primary: PrimaryUnit{
			Type:     d.classifier.Classify(queryText, entities),
			Entities: entities,
		},
	}

	location := effectiveLocation(entities)

	if location != "" {
		keywords := safetyKeywords[location]
		if keywords == nil {
			keywords = []string{location, "safety requirements"}
		}
		components.Secondary = append(components.Secondary, Concern{
			Type:     "safety",
			Keywords: keywords,
			Priority: PrioritySafety,
		})
	}

	if len(entities.SpecialRequirements) > 0 {
		keywords := append([]string{}, entities.SpecialRequirements...)
		keywords = append(keywords, "protective device selection")
		components.Secondary = append(components.Secondary, Concern{
			Type:     "protection",
			Keywords: keywords,
			Priority: PriorityProtection,
		})
	}

	if len(entities.InstallationConstraints) > 0 || entities.InstallMethod != "" {
		keywords := append([]string{}, entities.InstallationConstraints...)
		if entities.InstallMethod != "" {
			keywords = append(keywords, entities.InstallMethod)
		}
		keywords = append(keywords, "installation method")
		components.Secondary = append(components.Secondary, Concern{
			Type:     "installation",
			Keywords: keywords,
			Priority: PriorityInstallation,
		})
	}

	if entities.HasPower() {
		keywords := []string{"cable sizing", "current-carrying capacity"}
		if entities.HasDistance() {
			keywords = append(keywords, "voltage drop")
		}
		components.Secondary = append(components.Secondary, Concern{
			Type:     "sizing",
			Keywords: keywords,
			Priority: PrioritySizing,
		})
	}

	// Stable sort: equal priorities keep their derivation order.
	sort.SliceStable(components.Secondary, func(i, j int) bool {
		return components.Secondary[i].Priority > components.Secondary[j].Priority
	})

	components.Implicit = implicitRefs(entities, location)

	return components
}

// effectiveLocation resolves the install location, inferring bathroom
// for shower loads when no location was stated.
func effectiveLocation(entities ParsedEntities) string {
	if entities.Location != "" {
		return entities.Location
	}
	if entities.LoadType == "shower" {
		return "bathroom"
	}
	return ""
}

// implicitRefs derives must-check identifiers from entity values.
// These are advisory metadata for context building, not a result filter.
func implicitRefs(entities ParsedEntities, location string) ImplicitRefs {
	var refs ImplicitRefs

	if regs, ok := locationRegulations[location]; ok {
		refs.RegulationIDs = append(refs.RegulationIDs, regs...)
	}

	if entities.LoadType == "ev-charger" {
		refs.RegulationIDs = append(refs.RegulationIDs, "722.411.4.1")
	}

	if entities.Power > DiversityPowerThreshold {
		refs.RegulationIDs = append(refs.RegulationIDs, "311.1")
		refs.TableIDs = append(refs.TableIDs, "1B")
	}

	if entities.HasDistance() {
		refs.RegulationIDs = append(refs.RegulationIDs, "525.1")
		refs.TableIDs = append(refs.TableIDs, "4Ab")
	}

	if entities.EarthingSystem == "TT" {
		refs.RegulationIDs = append(refs.RegulationIDs, "411.5.3")
	}

	for _, req := range entities.SpecialRequirements {
		if std, ok := requirementStandards[req]; ok && !containsString(refs.StandardIDs, std) {
			refs.StandardIDs = append(refs.StandardIDs, std)
		}
	}

	if len(refs.RegulationIDs) > 0 || len(refs.TableIDs) > 0 {
		refs.StandardIDs = append(refs.StandardIDs, "BS 7671")
	}

	return refs
}
