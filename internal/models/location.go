package models

import (
	"fmt"
	"time"
)

// ElementKind is how the source represented a feature's geometry.
type ElementKind string

const (
	KindNode     ElementKind = "node"
	KindWay      ElementKind = "way"
	KindRelation ElementKind = "relation"
)

// Code returns the single-letter prefix used in stable ids.
func (k ElementKind) Code() string {
	switch k {
	case KindNode:
		return "n"
	case KindWay:
		return "w"
	case KindRelation:
		return "r"
	default:
		return ""
	}
}

// Valid reports whether k is one of the known kinds.
func (k ElementKind) Valid() bool {
	return k.Code() != ""
}

// ParseElementKind maps a source type string to an ElementKind.
func ParseElementKind(s string) (ElementKind, error) {
	k := ElementKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown element kind: %q", s)
	}
	return k, nil
}

// StableID derives the deduplication key for an element, e.g. "n123", "w456".
// Kind codes are distinct so ids never collide across kinds.
func StableID(kind ElementKind, id int64) string {
	return fmt.Sprintf("%s%d", kind.Code(), id)
}

type Location struct {
	StableID     string      // "n123", "w456", "r789"
	Kind         ElementKind // node, way or relation
	Title        string
	Description  string
	Latitude     float64
	Longitude    float64
	Address      string // coordinate string in fast mode
	Category     Category
	RiskLevel    RiskLevel
	BuildingType string            // "unknown" when untagged
	RawTags      map[string]string // original tags, verbatim
	ScrapedAt    time.Time         // when the element was fetched
	CreatedAt    time.Time         // when the row was written
}

// CoordinateString formats a coordinate pair the way addresses are stored
// when no reverse lookup is done.
func CoordinateString(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}
