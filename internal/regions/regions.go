// Package regions holds the catalog of named scrape targets: city lists,
// bounding boxes, countries and US states.
package regions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

//go:embed regions.yaml
var defaultCatalog []byte

var ErrUnknownRegion = errors.New("unknown region")

const (
	// TargetsRegion names the curated list of cities known for abandoned buildings.
	TargetsRegion = "targets"
	// USARegion expands to every configured US state.
	USARegion = "usa"
	statePrefix = "us:"
)

type Country struct {
	BBox   models.BBox `yaml:"bbox"`
	Cities []string    `yaml:"cities"`
}

type Catalog struct {
	TargetCities []string               `yaml:"target_cities"`
	Boxes        map[string]models.BBox `yaml:"boxes"`
	Countries    map[string]Country     `yaml:"countries"`
	USStates     map[string][]string    `yaml:"us_states"`
}

// Target is one scope to scrape. Country marks whole-country boxes, which
// get a longer minimum gap between requests.
type Target struct {
	Name    string
	Scope   models.Scope
	Country bool
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading regions file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("error parsing regions: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for name, box := range c.Boxes {
		if err := box.Validate(); err != nil {
			return fmt.Errorf("box %s: %w", name, err)
		}
	}
	for name, country := range c.Countries {
		if err := country.BBox.Validate(); err != nil {
			return fmt.Errorf("country %s: %w", name, err)
		}
	}
	return nil
}

// Resolve expands a region name into scrape targets. Accepted names are
// "targets", a box name, a country name, "usa", a US state name or
// "us:<state>". Matching ignores case; spaces and underscores are equivalent.
func (c *Catalog) Resolve(name string) ([]Target, error) {
	key := normalize(name)

	switch {
	case key == TargetsRegion:
		return placeTargets(c.TargetCities), nil

	case key == USARegion:
		var targets []Target
		for _, state := range sortedKeys(c.USStates) {
			targets = append(targets, stateTargets(state, c.USStates[state])...)
		}
		return targets, nil
	}

	if box, ok := lookup(c.Boxes, key); ok {
		return []Target{{Name: key, Scope: models.BBoxScope(box)}}, nil
	}

	if country, ok := lookup(c.Countries, key); ok {
		// Countries with a city list are scraped city by city.
		if len(country.Cities) > 0 {
			return placeTargets(country.Cities), nil
		}
		return []Target{{Name: key, Scope: models.BBoxScope(country.BBox), Country: true}}, nil
	}

	if state, cities, ok := c.state(strings.TrimPrefix(key, statePrefix)); ok {
		return stateTargets(state, cities), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
}

// Names lists every resolvable region name, sorted within each group.
func (c *Catalog) Names() []string {
	names := []string{TargetsRegion, USARegion}
	names = append(names, sortedKeys(c.Boxes)...)
	names = append(names, sortedKeys(c.Countries)...)
	for _, state := range sortedKeys(c.USStates) {
		names = append(names, statePrefix+normalize(state))
	}
	return names
}

func (c *Catalog) state(key string) (string, []string, bool) {
	for state, cities := range c.USStates {
		if normalize(state) == key {
			return state, cities, true
		}
	}
	return "", nil, false
}

func placeTargets(places []string) []Target {
	targets := make([]Target, 0, len(places))
	for _, p := range places {
		targets = append(targets, Target{Name: p, Scope: models.PlaceScope(p)})
	}
	return targets
}

// stateTargets qualifies each city with its state for better geocoding.
func stateTargets(state string, cities []string) []Target {
	targets := make([]Target, 0, len(cities))
	for _, city := range cities {
		full := fmt.Sprintf("%s, %s, USA", city, state)
		targets = append(targets, Target{Name: full, Scope: models.PlaceScope(full)})
	}
	return targets
}

func lookup[V any](m map[string]V, key string) (V, bool) {
	for k, v := range m {
		if normalize(k) == key {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
