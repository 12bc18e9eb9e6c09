// Package overpass builds Overpass QL queries for abandoned structures and
// runs them against an Overpass interpreter.
package overpass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

const header = "[out:json][timeout:300][maxsize:1073741824];"

// selectors match structures tagged as abandoned, ruined, disused or demolished.
var selectors = []string{
	`nwr["abandoned"="yes"]`,
	`nwr["historic"="ruins"]`,
	`nwr["ruins"="yes"]`,
	`nwr["building"="ruins"]`,
	`nwr["disused"="yes"]`,
	`nwr["disused:building"]`,
	`nwr["building:state"~"abandoned|ruins|disused"]`,
	`nwr["demolished:building"]`,
	`nwr["was:building"]`,
}

// ErrDegradedQuery marks a place query that could not be resolved and fell
// back to an unscoped query.
var ErrDegradedQuery = errors.New("place could not be resolved, query is unscoped")

// PlaceResolver turns a place name into the bounding box to search.
type PlaceResolver interface {
	ResolvePlace(ctx context.Context, name string) (models.BBox, error)
}

// Query is a ready-to-run Overpass QL text with the box it is restricted to.
type Query struct {
	Text     string
	Scope    models.Scope
	BBox     *models.BBox // nil for unscoped queries
	Degraded bool
	Reason   string
}

func (q Query) String() string {
	return q.Text
}

// Err returns ErrDegradedQuery wrapped with the reason when the query fell back.
func (q Query) Err() error {
	if !q.Degraded {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDegradedQuery, q.Reason)
}

type Builder struct {
	resolver PlaceResolver
	logger   *slog.Logger
}

// NewBuilder returns a Builder. resolver may be nil if place scopes are
// never built; they then degrade.
func NewBuilder(resolver PlaceResolver, logger *slog.Logger) *Builder {
	return &Builder{resolver: resolver, logger: logger}
}

// Build translates a scope into a query. A place that cannot be resolved
// does not fail the build: the unscoped query comes back marked Degraded.
func (b *Builder) Build(ctx context.Context, scope models.Scope) (Query, error) {
	if err := scope.Validate(); err != nil {
		return Query{}, err
	}

	switch {
	case scope.BBox != nil:
		box := *scope.BBox
		return Query{Text: BBoxQuery(box), Scope: scope, BBox: &box}, nil

	case scope.Place != "":
		box, err := b.resolve(ctx, scope.Place)
		if err != nil {
			b.logger.Warn("place resolution failed, falling back to unscoped query",
				"place", scope.Place, "error", err)
			return Query{
				Text:     UnscopedQuery(),
				Scope:    scope,
				Degraded: true,
				Reason:   err.Error(),
			}, nil
		}
		b.logger.Info("resolved place", "place", scope.Place, "bbox", box.String())
		return Query{Text: BBoxQuery(box), Scope: scope, BBox: &box}, nil

	default:
		return Query{Text: UnscopedQuery(), Scope: scope}, nil
	}
}

func (b *Builder) resolve(ctx context.Context, place string) (models.BBox, error) {
	if b.resolver == nil {
		return models.BBox{}, errors.New("no place resolver configured")
	}
	return b.resolver.ResolvePlace(ctx, place)
}

// BBoxQuery restricts every selector to the box.
func BBoxQuery(box models.BBox) string {
	return render("(" + box.String() + ")")
}

// UnscopedQuery runs every selector without a geographic filter.
func UnscopedQuery() string {
	return render("")
}

func render(filter string) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n(\n")
	for _, sel := range selectors {
		sb.WriteString("  ")
		sb.WriteString(sel)
		sb.WriteString(filter)
		sb.WriteString(";\n")
	}
	sb.WriteString(");\nout center;\n")
	return sb.String()
}
