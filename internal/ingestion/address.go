package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/mr1hm/abandoned-explorer/internal/geocode"
	"github.com/mr1hm/abandoned-explorer/internal/models"
	"github.com/mr1hm/abandoned-explorer/internal/ratelimit"
)

// AddressResolver fills in a human-readable address. It never fails: the
// coordinate string is the fallback.
type AddressResolver interface {
	Address(ctx context.Context, lat, lon float64) string
}

// FastAddresses skips lookups and stores coordinates as the address.
type FastAddresses struct{}

func (FastAddresses) Address(_ context.Context, lat, lon float64) string {
	return models.CoordinateString(lat, lon)
}

// ReverseAddresses asks a reverse geocoder, spacing calls with a scheduler
// and bounding each with a timeout.
type ReverseAddresses struct {
	geocoder  geocode.Geocoder
	scheduler *ratelimit.Scheduler
	timeout   time.Duration
	logger    *slog.Logger
}

func NewReverseAddresses(g geocode.Geocoder, scheduler *ratelimit.Scheduler, timeout time.Duration, logger *slog.Logger) *ReverseAddresses {
	return &ReverseAddresses{
		geocoder:  g,
		scheduler: scheduler,
		timeout:   timeout,
		logger:    logger,
	}
}

func (r *ReverseAddresses) Address(ctx context.Context, lat, lon float64) string {
	fallback := models.CoordinateString(lat, lon)

	if err := r.scheduler.Wait(ctx); err != nil {
		return fallback
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.geocoder.Reverse(lookupCtx, lat, lon)
	if err != nil {
		// Failures are routine under load; keep them out of info logs.
		r.logger.Debug("reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		return fallback
	}
	if !result.Found() {
		return fallback
	}
	return result.DisplayName
}
