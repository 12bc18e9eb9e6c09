package repository

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
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
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		osm_id TEXT NOT NULL UNIQUE,
		osm_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		address TEXT,
		category_id INTEGER NOT NULL,
		danger_level_id INTEGER NOT NULL,
		building_type TEXT NOT NULL,
		original_tags TEXT,
		scraped_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (category_id) REFERENCES categories(id),
		FOREIGN KEY (danger_level_id) REFERENCES risk_levels(id)
	);

	CREATE TABLE IF NOT EXISTS location_tags (
		location_id INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (location_id, key),
		FOREIGN KEY (location_id) REFERENCES locations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_locations_category ON locations(category_id);
	CREATE INDEX IF NOT EXISTS idx_locations_danger ON locations(danger_level_id);
	CREATE INDEX IF NOT EXISTS idx_locations_coords ON locations(latitude, longitude);
	CREATE INDEX IF NOT EXISTS idx_location_tags_key ON location_tags(key, value);
`

// NewSQLiteDB opens (or creates) a SQLite database at path and bootstraps
// the schema and reference tables. ":memory:" is supported.
func NewSQLiteDB(path string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	return newStore(db, dialectSQLite, clock, logger)
}
