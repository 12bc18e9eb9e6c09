package repository

import (
	"context"
	"errors"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

var ErrNotFound = errors.New("location not found")

type Filter struct {
	Limit    int
	Offset   int
	Category *models.Category
	MinRisk  *models.RiskLevel // >= this level (e.g., MEDIUM includes MEDIUM, HIGH and EXTREME)
	BBox     *models.BBox
}

// SaveResult tallies what happened to each record of a batch.
// Inserted + Skipped + Failed always equals the batch length.
type SaveResult struct {
	Inserted int
	Skipped  int
	Failed   int
	// InsertedIDs lists the stable ids that were new, in batch order.
	InsertedIDs []string
}

func (r *SaveResult) Add(o SaveResult) {
	r.Inserted += o.Inserted
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.InsertedIDs = append(r.InsertedIDs, o.InsertedIDs...)
}

type CategoryCount struct {
	Category models.Category
	Count    int
}

type RiskCount struct {
	RiskLevel models.RiskLevel
	Count     int
}

type LocationRepository interface {
	// SaveBatch inserts new locations and skips ones whose stable id is
	// already stored. Per-record failures are counted, not returned.
	SaveBatch(ctx context.Context, locations []models.Location) (SaveResult, error)
	GetByID(ctx context.Context, stableID string) (*models.Location, error)
	Exists(ctx context.Context, stableID string) (bool, error)
	ListLocations(ctx context.Context, opts Filter) ([]models.Location, error)
	Count(ctx context.Context) (int, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	CountByRisk(ctx context.Context) ([]RiskCount, error)
}
