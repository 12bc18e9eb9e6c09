package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) schema() string {
	if d == dialectPostgres {
		return postgresSchema
	}
	return sqliteSchema
}

// rebind rewrites ? placeholders to $N for postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Store is the SQL implementation of LocationRepository shared by the
// SQLite and Postgres drivers.
type Store struct {
	db      *sql.DB
	dialect dialect
	clock   clockwork.Clock
	logger  *slog.Logger
}

var _ LocationRepository = (*Store)(nil)

// Open picks the driver by name: "sqlite" uses path, "postgres" uses dsn.
func Open(driver, path, dsn string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteDB(path, clock, logger)
	case "postgres":
		return NewPostgresDB(dsn, clock, logger)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", driver)
	}
}

func newStore(db *sql.DB, d dialect, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		clock:   clock,
		logger:  logger,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while seeding reference tables: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(s.dialect.schema())
	return err
}

// seed writes the category and risk reference rows. Existing rows are left alone.
func (s *Store) seed() error {
	for _, c := range models.Categories {
		_, err := s.db.Exec(s.dialect.rebind(
			`INSERT INTO categories (id, key, name, icon) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
			c.ID(), c.Key(), c.Name(), c.Icon())
		if err != nil {
			return fmt.Errorf("category %s: %w", c.Key(), err)
		}
	}
	for _, r := range models.RiskLevels {
		_, err := s.db.Exec(s.dialect.rebind(
			`INSERT INTO risk_levels (id, key, name, color, risk_level) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
			r.ID(), r.Key(), r.Name(), r.Color(), r.Ordinal())
		if err != nil {
			return fmt.Errorf("risk level %s: %w", r.Key(), err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveBatch writes the batch in one transaction. Each record runs under its
// own savepoint so a bad record is rolled back alone and the rest commit.
func (s *Store) SaveBatch(ctx context.Context, locations []models.Location) (SaveResult, error) {
	var res SaveResult
	if len(locations) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	for i := range locations {
		loc := &locations[i]

		if _, err := tx.ExecContext(ctx, "SAVEPOINT location_insert"); err != nil {
			return SaveResult{}, fmt.Errorf("error creating savepoint: %w", err)
		}

		inserted, err := s.insertLocation(ctx, tx, loc, now)
		if err != nil {
			if ctx.Err() != nil {
				return SaveResult{}, ctx.Err()
			}
			s.logger.Error("error saving location", "osm_id", loc.StableID, "error", err)
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT location_insert"); rbErr != nil {
				return SaveResult{}, fmt.Errorf("error rolling back savepoint: %w", rbErr)
			}
			res.Failed++
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT location_insert"); err != nil {
			return SaveResult{}, fmt.Errorf("error releasing savepoint: %w", err)
		}
		if inserted {
			loc.CreatedAt = now
			res.Inserted++
			res.InsertedIDs = append(res.InsertedIDs, loc.StableID)
		} else {
			res.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("error committing batch: %w", err)
	}

	s.logger.Info("saved locations",
		"inserted", res.Inserted, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// insertLocation reports false when the stable id already exists.
func (s *Store) insertLocation(ctx context.Context, tx *sql.Tx, loc *models.Location, now time.Time) (bool, error) {
	if !loc.Category.Valid() || !loc.RiskLevel.Valid() {
		return false, fmt.Errorf("invalid category %d or risk level %d", loc.Category, loc.RiskLevel)
	}

	rawTags, err := json.Marshal(loc.RawTags)
	if err != nil {
		return false, fmt.Errorf("error encoding tags: %w", err)
	}

	scrapedAt := loc.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}

	var id int64
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`
		INSERT INTO locations
			(osm_id, osm_type, title, description, latitude, longitude, address,
			 category_id, danger_level_id, building_type, original_tags, scraped_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (osm_id) DO NOTHING
		RETURNING id`),
		loc.StableID, string(loc.Kind), loc.Title, loc.Description, loc.Latitude, loc.Longitude,
		loc.Address, loc.Category.ID(), loc.RiskLevel.ID(), loc.BuildingType, string(rawTags),
		scrapedAt.UTC(), now,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error inserting location: %w", err)
	}

	keys := make([]string, 0, len(loc.RawTags))
	for k := range loc.RawTags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err := tx.ExecContext(ctx, s.dialect.rebind(
			`INSERT INTO location_tags (location_id, key, value) VALUES (?, ?, ?)`),
			id, k, loc.RawTags[k])
		if err != nil {
			return false, fmt.Errorf("error inserting tag %q: %w", k, err)
		}
	}
	return true, nil
}

const locationColumns = `osm_id, osm_type, title, description, latitude, longitude, COALESCE(address, ''),
	category_id, danger_level_id, building_type, COALESCE(original_tags, ''), scraped_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*models.Location, error) {
	var (
		loc      models.Location
		kind     string
		category int
		risk     int
		rawTags  string
	)
	err := row.Scan(&loc.StableID, &kind, &loc.Title, &loc.Description, &loc.Latitude, &loc.Longitude,
		&loc.Address, &category, &risk, &loc.BuildingType, &rawTags, &loc.ScrapedAt, &loc.CreatedAt)
	if err != nil {
		return nil, err
	}
	loc.Kind = models.ElementKind(kind)
	loc.Category = models.Category(category)
	loc.RiskLevel = models.RiskLevel(risk)
	if rawTags != "" {
		if err := json.Unmarshal([]byte(rawTags), &loc.RawTags); err != nil {
			return nil, fmt.Errorf("error decoding tags for %s: %w", loc.StableID, err)
		}
	}
	return &loc, nil
}

func (s *Store) GetByID(ctx context.Context, stableID string) (*models.Location, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+locationColumns+` FROM locations WHERE osm_id = ?`), stableID)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting location %s: %w", stableID, err)
	}
	return loc, nil
}

func (s *Store) Exists(ctx context.Context, stableID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT EXISTS(SELECT 1 FROM locations WHERE osm_id = ?)`), stableID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking location %s: %w", stableID, err)
	}
	return exists, nil
}

func (s *Store) ListLocations(ctx context.Context, opts Filter) ([]models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE 1=1`
	var args []any

	if opts.Category != nil {
		query += ` AND category_id = ?`
		args = append(args, opts.Category.ID())
	}
	if opts.MinRisk != nil {
		query += ` AND danger_level_id >= ?`
		args = append(args, opts.MinRisk.ID())
	}
	if opts.BBox != nil {
		query += ` AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`
		args = append(args, opts.BBox.South, opts.BBox.North, opts.BBox.West, opts.BBox.East)
	}

	query += ` ORDER BY id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error listing locations: %w", err)
	}
	defer rows.Close()

	var results []models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning location: %w", err)
		}
		results = append(results, *loc)
	}
	return results, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting locations: %w", err)
	}
	return n, nil
}

// CountByCategory returns stored categories, most populous first.
func (s *Store) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, COUNT(*) AS n
		FROM locations
		GROUP BY category_id
		ORDER BY n DESC, category_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error counting by category: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts = append(counts, CategoryCount{Category: models.Category(id), Count: n})
	}
	return counts, rows.Err()
}

// CountByRisk returns stored risk levels in ascending order.
func (s *Store) CountByRisk(ctx context.Context) ([]RiskCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT danger_level_id, COUNT(*)
		FROM locations
		GROUP BY danger_level_id
		ORDER BY danger_level_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error counting by risk: %w", err)
	}
	defer rows.Close()

	var counts []RiskCount
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts = append(counts, RiskCount{RiskLevel: models.RiskLevel(id), Count: n})
	}
	return counts, rows.Err()
}
