package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/mr1hm/abandoned-explorer/internal/classify"
	"github.com/mr1hm/abandoned-explorer/internal/metrics"
	"github.com/mr1hm/abandoned-explorer/internal/models"
	"github.com/mr1hm/abandoned-explorer/internal/overpass"
)

// ErrSkip marks an element that cannot become a location.
var ErrSkip = errors.New("element skipped")

const progressEvery = 200

// NormalizeStats counts what NormalizeAll did with a response.
type NormalizeStats struct {
	Total      int
	Normalized int
	Skipped    int
}

// Normalizer turns Overpass elements into locations.
type Normalizer struct {
	addresses AddressResolver
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewNormalizer(addresses AddressResolver, clock clockwork.Clock, m *metrics.Metrics, logger *slog.Logger) *Normalizer {
	if addresses == nil {
		addresses = FastAddresses{}
	}
	return &Normalizer{
		addresses: addresses,
		clock:     clock,
		metrics:   m,
		logger:    logger,
	}
}

// Normalize converts one element. Elements without usable coordinates, of
// an unknown type, or that panic during conversion return an error wrapping
// ErrSkip.
func (n *Normalizer) Normalize(ctx context.Context, e overpass.Element) (loc models.Location, err error) {
	defer func() {
		if r := recover(); r != nil {
			loc = models.Location{}
			err = fmt.Errorf("%w: %s %d: panic: %v", ErrSkip, e.Type, e.ID, r)
		}
	}()

	kind, err := models.ParseElementKind(e.Type)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %v", ErrSkip, err)
	}

	lat, lon, err := position(kind, e)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %s %d: %v", ErrSkip, e.Type, e.ID, err)
	}

	tags := e.Tags
	if tags == nil {
		tags = map[string]string{}
	}

	return models.Location{
		StableID:     models.StableID(kind, e.ID),
		Kind:         kind,
		Title:        classify.Title(tags),
		Description:  classify.Description(tags),
		Latitude:     lat,
		Longitude:    lon,
		Address:      n.addresses.Address(ctx, lat, lon),
		Category:     classify.Category(tags),
		RiskLevel:    classify.Risk(tags),
		BuildingType: classify.BuildingType(tags),
		RawTags:      tags,
		ScrapedAt:    n.clock.Now().UTC(),
	}, nil
}

// NormalizeAll converts a response's elements, nodes first, then ways, then
// relations, keeping response order within each kind. Skips are logged and
// counted.
func (n *Normalizer) NormalizeAll(ctx context.Context, elements []overpass.Element) ([]models.Location, NormalizeStats) {
	stats := NormalizeStats{Total: len(elements)}
	locations := make([]models.Location, 0, len(elements))

	processed := 0
	for _, kind := range []models.ElementKind{models.KindNode, models.KindWay, models.KindRelation, ""} {
		for _, e := range elements {
			if !matchesPass(kind, e.Type) {
				continue
			}
			if ctx.Err() != nil {
				stats.Skipped += stats.Total - processed
				return locations, stats
			}

			loc, err := n.Normalize(ctx, e)
			processed++
			if err != nil {
				stats.Skipped++
				n.logger.Debug("skipping element", "type", e.Type, "id", e.ID, "reason", err)
				if n.metrics != nil {
					n.metrics.ElementsSkipped.Inc()
				}
			} else {
				locations = append(locations, loc)
				stats.Normalized++
			}

			if processed%progressEvery == 0 {
				n.logger.Info("normalization progress",
					"processed", processed, "total", stats.Total, "valid", len(locations))
			}
		}
	}

	n.logger.Info("normalization complete",
		"valid", stats.Normalized, "total", stats.Total, "skipped", stats.Skipped)
	return locations, stats
}

// matchesPass puts unknown element types in the final pass so they are
// still counted as skips.
func matchesPass(pass models.ElementKind, elementType string) bool {
	if pass == "" {
		return !models.ElementKind(elementType).Valid()
	}
	return string(pass) == elementType
}

// position picks the representative point for an element.
func position(kind models.ElementKind, e overpass.Element) (lat, lon float64, err error) {
	switch kind {
	case models.KindNode:
		if e.Lat == nil || e.Lon == nil {
			return 0, 0, errors.New("node has no coordinates")
		}
		return *e.Lat, *e.Lon, nil

	case models.KindWay:
		if e.Center != nil {
			return e.Center.Lat, e.Center.Lon, nil
		}
		if len(e.Geometry) > 0 {
			return centroid(e.Geometry)
		}
		return 0, 0, errors.New("way has no center and no member coordinates")

	case models.KindRelation:
		if e.Center != nil {
			return e.Center.Lat, e.Center.Lon, nil
		}
		return 0, 0, errors.New("relation has no center")
	}
	return 0, 0, fmt.Errorf("unsupported kind %q", kind)
}

// centroid is the arithmetic mean of the member points.
func centroid(points []overpass.Point) (lat, lon float64, err error) {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.Lon, p.Lat)
	}
	mp := geom.NewMultiPointFlat(geom.XY, flat)

	c, err := xy.Centroid(mp)
	if err != nil {
		return 0, 0, fmt.Errorf("centroid: %w", err)
	}
	return c.Y(), c.X(), nil
}
