package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BBox is a bounding box in decimal degrees.
type BBox struct {
	South float64 `yaml:"south" json:"south"`
	West  float64 `yaml:"west" json:"west"`
	North float64 `yaml:"north" json:"north"`
	East  float64 `yaml:"east" json:"east"`
}

// Validate checks coordinate ranges and ordering.
func (b BBox) Validate() error {
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return fmt.Errorf("bbox out of range: %s", b)
	}
	if b.South >= b.North || b.West >= b.East {
		return fmt.Errorf("bbox is empty or inverted: %s", b)
	}
	return nil
}

// Around builds a square box of +-offset degrees around a point, clamped to
// valid latitudes and longitudes. Boxes do not wrap the antimeridian.
func Around(lat, lon, offset float64) BBox {
	return BBox{
		South: max(lat-offset, -90),
		West:  max(lon-offset, -180),
		North: min(lat+offset, 90),
		East:  min(lon+offset, 180),
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// String renders "south,west,north,east" in plain decimal notation, the form
// Overpass bbox filters accept.
func (b BBox) String() string {
	return formatCoord(b.South) + "," + formatCoord(b.West) + "," + formatCoord(b.North) + "," + formatCoord(b.East)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseBBox reads "south,west,north,east". Commas and whitespace both
// separate values.
func ParseBBox(s string) (BBox, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 4 {
		return BBox{}, fmt.Errorf("bbox must be south,west,north,east: %q", s)
	}

	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox value %q: %w", f, err)
		}
		v[i] = n
	}

	b := BBox{South: v[0], West: v[1], North: v[2], East: v[3]}
	return b, b.Validate()
}

// Scope is a query target: a bounding box, a place name, or neither
// (the unscoped global query).
type Scope struct {
	BBox  *BBox
	Place string
}

func BBoxScope(b BBox) Scope       { return Scope{BBox: &b} }
func PlaceScope(name string) Scope { return Scope{Place: name} }

// Global reports whether the scope carries no geographic restriction.
func (s Scope) Global() bool {
	return s.BBox == nil && s.Place == ""
}

func (s Scope) String() string {
	switch {
	case s.BBox != nil:
		return "bbox(" + s.BBox.String() + ")"
	case s.Place != "":
		return "place(" + s.Place + ")"
	default:
		return "global"
	}
}

var ErrInvalidScope = errors.New("invalid scope")

func (s Scope) Validate() error {
	if s.BBox != nil && s.Place != "" {
		return fmt.Errorf("%w: both bbox and place set", ErrInvalidScope)
	}
	if s.BBox != nil {
		if err := s.BBox.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScope, err)
		}
	}
	return nil
}
