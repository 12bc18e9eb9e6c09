package api

import (
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

func toFeature(loc models.Location, withTags bool) *geojson.Feature {
	props := map[string]any{
		"osm_id":        loc.StableID,
		"osm_type":      string(loc.Kind),
		"title":         loc.Title,
		"description":   loc.Description,
		"address":       loc.Address,
		"category":      loc.Category.Key(),
		"category_name": loc.Category.Name(),
		"category_icon": loc.Category.Icon(),
		"risk_level":    loc.RiskLevel.Key(),
		"risk_name":     loc.RiskLevel.Name(),
		"risk_color":    loc.RiskLevel.Color(),
		"building_type": loc.BuildingType,
		"scraped_at":    loc.ScrapedAt.Format(time.RFC3339),
	}
	if !loc.CreatedAt.IsZero() {
		props["created_at"] = loc.CreatedAt.Format(time.RFC3339)
	}
	if withTags {
		props["tags"] = loc.RawTags
	}

	return &geojson.Feature{
		ID:         loc.StableID,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{loc.Longitude, loc.Latitude}),
		Properties: props,
	}
}

func toGeoJSON(locations []models.Location) *geojson.FeatureCollection {
	features := make([]*geojson.Feature, 0, len(locations))
	for _, loc := range locations {
		features = append(features, toFeature(loc, false))
	}
	return &geojson.FeatureCollection{Features: features}
}
