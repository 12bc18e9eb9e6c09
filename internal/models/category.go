package models

import (
	"fmt"
	"strings"
)

// Category is the closed set of structure categories. The numeric value is
// the reference table id.
type Category int

const (
	CategoryAbandoned  Category = 1
	CategoryRuins      Category = 2
	CategoryDisused    Category = 3
	CategoryDemolished Category = 4
	CategoryDerelict   Category = 5
)

// Categories lists every category in id order.
var Categories = []Category{
	CategoryAbandoned,
	CategoryRuins,
	CategoryDisused,
	CategoryDemolished,
	CategoryDerelict,
}

type categoryInfo struct {
	key  string
	name string
	icon string
}

var categoryMeta = [...]categoryInfo{
	CategoryAbandoned:  {"abandoned", "Abandoned Building", "building"},
	CategoryRuins:      {"ruins", "Ruins", "building.columns"},
	CategoryDisused:    {"disused", "Disused Building", "building.2"},
	CategoryDemolished: {"demolished", "Demolished", "xmark.square"},
	CategoryDerelict:   {"derelict", "Derelict", "building.slash"},
}

func (c Category) info() categoryInfo {
	if c < CategoryAbandoned || c > CategoryDerelict {
		return categoryInfo{key: "unknown", name: "Unknown"}
	}
	return categoryMeta[c]
}

func (c Category) ID() int      { return int(c) }
func (c Category) Key() string  { return c.info().key }
func (c Category) Name() string { return c.info().name }
func (c Category) Icon() string { return c.info().icon }

func (c Category) String() string { return c.Key() }

func (c Category) Valid() bool {
	return c >= CategoryAbandoned && c <= CategoryDerelict
}

// ParseCategory accepts a category key ("ruins") or its numeric id ("2").
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if s == c.Key() || s == fmt.Sprint(c.ID()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category: %q", s)
}
