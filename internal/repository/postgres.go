package repository

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		icon TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS risk_levels (
		id INTEGER PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		color TEXT NOT NULL,
		risk_level INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locations (
		id BIGSERIAL PRIMARY KEY,
		osm_id TEXT NOT NULL UNIQUE,
		osm_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		address TEXT,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		danger_level_id INTEGER NOT NULL REFERENCES risk_levels(id),
		building_type TEXT NOT NULL,
		original_tags TEXT,
		scraped_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS location_tags (
		location_id BIGINT NOT NULL REFERENCES locations(id),
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (location_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_locations_category ON locations(category_id);
	CREATE INDEX IF NOT EXISTS idx_locations_danger ON locations(danger_level_id);
	CREATE INDEX IF NOT EXISTS idx_locations_coords ON locations(latitude, longitude);
	CREATE INDEX IF NOT EXISTS idx_location_tags_key ON location_tags(key, value);
`

// NewPostgresDB connects through the pgx database/sql driver.
func NewPostgresDB(dsn string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(4)

	return newStore(db, dialectPostgres, clock, logger)
}
