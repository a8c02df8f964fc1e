package query

import (
	"regexp"
	"strconv"
	"strings"
)

// Parser extracts structured entities from free-text queries.
// Parsing is a pure function of the input text: no side effects, and
// the same query always produces the same entities.
type Parser struct {
	kilowattPattern *regexp.Regexp
	wattPattern     *regexp.Regexp
	distancePattern *regexp.Regexp
	voltagePattern  *regexp.Regexp
	ambientPattern  *regexp.Regexp
	threePhase      *regexp.Regexp
	singlePhase     *regexp.Regexp
}

// NewParser creates a new entity parser.
func NewParser() *Parser {
	return &Parser{
		// Matches: "9.5kW", "7 kw", "3.6kW shower"
		kilowattPattern: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*kw\b`),

		// Matches: "500W", "3000 watts". Does not match the W in kW.
		wattPattern: regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*w(?:att)?s?\b`),

		// Matches: "15m", "15 m", "22 metres". Does not match "mm".
		distancePattern: regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*m(?:etres?|eters?)?\b`),

		// Matches nominal UK supply voltages only.
		voltagePattern: regexp.MustCompile(`(?i)\b(110|230|240|400|415)\s*v(?:olts?)?\b`),

		// Matches: "30°C", "35 degrees C", "40 deg C"
		ambientPattern: regexp.MustCompile(`(?i)\b(\d+)\s*(?:°\s*c|deg(?:rees)?\s*c?)\b`),

		threePhase:  regexp.MustCompile(`(?i)\b(?:three|3)[\s-]?phase\b`),
		singlePhase: regexp.MustCompile(`(?i)\b(?:single|1)[\s-]?phase\b`),
	}
}

// loadTypeVocabulary maps query phrases to load types. Longer phrases
// are listed before their substrings so the first match is the most
// specific one.
var loadTypeVocabulary = []struct {
	phrase   string
	loadType string
}{
	{"ev charger", "ev-charger"},
	{"car charger", "ev-charger"},
	{"electric vehicle", "ev-charger"},
	{"heat pump", "heat-pump"},
	{"immersion heater", "immersion"},
	{"immersion", "immersion"},
	{"shower", "shower"},
	{"cooker", "cooker"},
	{"oven", "oven"},
	{"hob", "hob"},
	{"boiler", "boiler"},
	{"socket", "socket"},
	{"lighting", "lighting"},
	{"lights", "lighting"},
	{"motor", "motor"},
}

// installMethodVocabulary maps query phrases to installation methods.
var installMethodVocabulary = []struct {
	phrase string
	method string
}{
	{"clipped direct", "clipped-direct"},
	{"in conduit", "conduit"},
	{"conduit", "conduit"},
	{"in trunking", "trunking"},
	{"trunking", "trunking"},
	{"cable tray", "tray"},
	{"buried", "buried"},
	{"underground", "buried"},
	{"in insulation", "in-insulation"},
	{"through insulation", "in-insulation"},
}

// locationVocabulary maps query phrases to install locations.
var locationVocabulary = []struct {
	phrase   string
	location string
}{
	{"shower room", "bathroom"},
	{"bathroom", "bathroom"},
	{"en-suite", "bathroom"},
	{"ensuite", "bathroom"},
	{"wet room", "bathroom"},
	{"swimming pool", "pool"},
	{"sauna", "sauna"},
	{"kitchen", "kitchen"},
	{"outdoors", "outdoor"},
	{"outdoor", "outdoor"},
	{"outside", "outdoor"},
	{"garden", "outdoor"},
	{"loft", "loft"},
	{"attic", "loft"},
	{"garage", "garage"},
	{"basement", "basement"},
	{"cellar", "basement"},
}

// specialRequirementVocabulary maps query phrases to protection
// requirement tags.
var specialRequirementVocabulary = []struct {
	phrase      string
	requirement string
}{
	{"rcbo", "rcbo"},
	{"rcd", "rcd"},
	{"afdd", "afdd"},
	{"arc fault", "afdd"},
	{"surge protection", "spd"},
	{"spd", "spd"},
	{"fire rated", "fire-rated"},
	{"fire-rated", "fire-rated"},
}

// constraintVocabulary maps query phrases to installation constraints.
var constraintVocabulary = []struct {
	phrase     string
	constraint string
}{
	{"thermal insulation", "insulation"},
	{"in insulation", "insulation"},
	{"through insulation", "insulation"},
	{"grouped", "grouping"},
	{"grouping", "grouping"},
	{"bunched", "grouping"},
	{"long run", "long-run"},
	{"voltage drop", "voltage-drop"},
	{"derating", "derating"},
	{"de-rating", "derating"},
	{"buried", "buried"},
	{"underground", "buried"},
}

// Parse extracts structured entities from the query text.
func (p *Parser) Parse(queryText string) ParsedEntities {
	text := strings.ToLower(strings.TrimSpace(queryText))
	if text == "" {
		return ParsedEntities{}
	}

	var entities ParsedEntities

	// Power: prefer kW, fall back to W
	if m := p.kilowattPattern.FindStringSubmatch(text); m != nil {
		if kw, err := strconv.ParseFloat(m[1], 64); err == nil {
			entities.Power = int(kw * 1000)
		}
	} else if m := p.wattPattern.FindStringSubmatch(text); m != nil {
		if w, err := strconv.ParseFloat(m[1], 64); err == nil {
			entities.Power = int(w)
		}
	}

	// First metre-suffixed number wins. The unit suffix keeps this
	// disjoint from power and voltage matches.
	for _, m := range p.distancePattern.FindAllStringSubmatch(text, -1) {
		if d, err := strconv.ParseFloat(m[1], 64); err == nil && d > 0 {
			entities.Distance = d
			break
		}
	}

	if m := p.voltagePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			entities.Voltage = v
		}
	}

	if m := p.ambientPattern.FindStringSubmatch(text); m != nil {
		if temp, err := strconv.Atoi(m[1]); err == nil {
			entities.AmbientTemp = temp
		}
	}

	for _, entry := range loadTypeVocabulary {
		if strings.Contains(text, entry.phrase) {
			entities.LoadType = entry.loadType
			break
		}
	}

	for _, entry := range installMethodVocabulary {
		if strings.Contains(text, entry.phrase) {
			entities.InstallMethod = entry.method
			break
		}
	}

	for _, entry := range locationVocabulary {
		if strings.Contains(text, entry.phrase) {
			entities.Location = entry.location
			break
		}
	}

	entities.EarthingSystem = parseEarthingSystem(text)

	for _, entry := range specialRequirementVocabulary {
		if strings.Contains(text, entry.phrase) && !containsString(entities.SpecialRequirements, entry.requirement) {
			entities.SpecialRequirements = append(entities.SpecialRequirements, entry.requirement)
		}
	}

	for _, entry := range constraintVocabulary {
		if strings.Contains(text, entry.phrase) && !containsString(entities.InstallationConstraints, entry.constraint) {
			entities.InstallationConstraints = append(entities.InstallationConstraints, entry.constraint)
		}
	}

	// Phase override rules: a three-phase marker forces 400V.
	switch {
	case p.threePhase.MatchString(text):
		entities.Phases = PhasesThree
		entities.Voltage = 400
	case p.singlePhase.MatchString(text):
		entities.Phases = PhasesSingle
		if entities.Voltage == 0 {
			entities.Voltage = 230
		}
	case entities.Voltage == 400 || entities.Voltage == 415:
		entities.Phases = PhasesThree
	}

	return entities
}

var ttPattern = regexp.MustCompile(`\btt\b`)

// parseEarthingSystem detects the supply earthing arrangement.
// TN-C-S must be checked before TN-S since the latter is a substring.
func parseEarthingSystem(text string) string {
	switch {
	case strings.Contains(text, "tn-c-s") || strings.Contains(text, "tncs") || strings.Contains(text, "pme"):
		return "TN-C-S"
	case strings.Contains(text, "tn-s") || strings.Contains(text, "tns"):
		return "TN-S"
	case ttPattern.MatchString(text):
		return "TT"
	default:
		return ""
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
