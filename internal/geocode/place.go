package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

// DefaultPlaceOffset is the half-width in degrees of the box searched around
// a resolved place, roughly 15km.
const DefaultPlaceOffset = 0.135

var ErrNoMatch = errors.New("no geocoding match")

// PlaceResolver forward-geocodes a place and boxes its centroid.
type PlaceResolver struct {
	geocoder Geocoder
	offset   float64
	timeout  time.Duration
}

func NewPlaceResolver(g Geocoder, offset float64, timeout time.Duration) *PlaceResolver {
	if offset <= 0 {
		offset = DefaultPlaceOffset
	}
	return &PlaceResolver{geocoder: g, offset: offset, timeout: timeout}
}

// ResolvePlace returns centroid +-offset for the best match of name.
func (p *PlaceResolver) ResolvePlace(ctx context.Context, name string) (models.BBox, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.geocoder.Search(ctx, name)
	if err != nil {
		return models.BBox{}, err
	}
	if !result.Found() {
		return models.BBox{}, fmt.Errorf("%w for %q", ErrNoMatch, name)
	}
	box := models.Around(result.Lat, result.Lon, p.offset)
	if err := box.Validate(); err != nil {
		return models.BBox{}, fmt.Errorf("place %q: %w", name, err)
	}
	return box, nil
}
