// Package classify maps OpenStreetMap tag sets to categories, risk levels and
// display text. Every function is total: any tag map, including nil, yields a
// valid result.
package classify

import (
	"strings"
	"unicode"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

const (
	defaultTitle       = "Abandoned Building"
	defaultDescription = "Abandoned building discovered via OpenStreetMap data."
	unknownBuilding    = "unknown"
)

var (
	highRiskKeys   = []string{"ruins", "collapsed", "demolished"}
	mediumRiskKeys = []string{"abandoned", "disused:building"}

	highRiskBuildings = map[string]bool{
		"industrial":  true,
		"factory":     true,
		"power_plant": true,
		"warehouse":   true,
	}
	mediumRiskBuildings = map[string]bool{
		"hospital": true,
		"school":   true,
		"office":   true,
	}
)

// Category picks the structure category. The first matching rule wins.
func Category(tags map[string]string) models.Category {
	building, _ := lookup(tags, "building")
	switch {
	case building == "ruins" || building == "historic":
		return models.CategoryRuins
	case tags["historic"] == "ruins":
		return models.CategoryRuins
	case building == "abandoned":
		return models.CategoryAbandoned
	case has(tags, "disused:building"):
		return models.CategoryDisused
	case has(tags, "demolished:building"):
		return models.CategoryDemolished
	case tags["abandoned"] == "yes":
		return models.CategoryAbandoned
	default:
		return models.CategoryAbandoned
	}
}

// Risk grades the danger of visiting the structure. Condition keys are
// checked before building use.
func Risk(tags map[string]string) models.RiskLevel {
	for _, k := range highRiskKeys {
		if has(tags, k) {
			return models.RiskHigh
		}
	}
	for _, k := range mediumRiskKeys {
		if has(tags, k) {
			return models.RiskMedium
		}
	}

	building := strings.ToLower(tags["building"])
	switch {
	case highRiskBuildings[building]:
		return models.RiskHigh
	case mediumRiskBuildings[building]:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Title builds a short display name.
func Title(tags map[string]string) string {
	if name := tags["name"]; name != "" {
		return "Abandoned " + name
	}
	if bt := buildingTag(tags); bt != "" && bt != "yes" {
		return "Abandoned " + Humanize(bt)
	}
	if historic := tags["historic"]; historic != "" {
		return Humanize(historic)
	}
	return defaultTitle
}

// Description joins whatever facts the tags carry into sentences.
func Description(tags map[string]string) string {
	var parts []string

	if bt := buildingTag(tags); bt != "" && bt != "yes" {
		parts = append(parts, "Building type: "+Humanize(bt))
	}
	if historic, ok := lookup(tags, "historic"); ok {
		parts = append(parts, "Historic site: "+Humanize(historic))
	}

	switch {
	case has(tags, "abandoned"):
		parts = append(parts, "Status: Abandoned")
	case has(tags, "disused:building"):
		parts = append(parts, "Status: Disused")
	case tags["building"] == "ruins":
		parts = append(parts, "Status: Ruins")
	}

	if v, ok := lookup(tags, "start_date"); ok {
		parts = append(parts, "Built: "+v)
	}
	if v, ok := lookup(tags, "end_date"); ok {
		parts = append(parts, "Abandoned: "+v)
	}

	if len(parts) == 0 {
		return defaultDescription
	}
	return strings.Join(parts, ". ")
}

// BuildingType returns the building value, falling back to the disused
// building value and then "unknown". Empty values count as missing.
func BuildingType(tags map[string]string) string {
	if v := tags["building"]; v != "" {
		return v
	}
	if v := tags["disused:building"]; v != "" {
		return v
	}
	return unknownBuilding
}

// Humanize turns a tag value like "power_plant" into "Power Plant".
// A letter is upper-cased when it follows a non-letter and lower-cased
// otherwise.
func Humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")

	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// buildingTag is the building value when the key is present, otherwise the
// disused building value.
func buildingTag(tags map[string]string) string {
	if v, ok := lookup(tags, "building"); ok {
		return v
	}
	return tags["disused:building"]
}

func lookup(tags map[string]string, key string) (string, bool) {
	v, ok := tags[key]
	return v, ok
}

func has(tags map[string]string, key string) bool {
	_, ok := tags[key]
	return ok
}
