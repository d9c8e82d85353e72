package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Debug("database migrations applied")
	return nil
}

var migrations = []string{
	// Bus stops
	`CREATE TABLE IF NOT EXISTS bus_stops (
		code        TEXT PRIMARY KEY,
		road_name   TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		latitude    REAL NOT NULL,
		longitude   REAL NOT NULL
	)`,

	// Bus routes: one row per stop per direction of a service
	`CREATE TABLE IF NOT EXISTS bus_routes (
		service_no    TEXT NOT NULL,
		operator      TEXT NOT NULL DEFAULT '',
		direction     INTEGER NOT NULL CHECK (direction IN (1, 2)),
		stop_sequence INTEGER NOT NULL,
		bus_stop_code TEXT NOT NULL,
		distance_km   REAL,
		wd_first_bus  TEXT NOT NULL DEFAULT '',
		wd_last_bus   TEXT NOT NULL DEFAULT '',
		sat_first_bus TEXT NOT NULL DEFAULT '',
		sat_last_bus  TEXT NOT NULL DEFAULT '',
		sun_first_bus TEXT NOT NULL DEFAULT '',
		sun_last_bus  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (service_no, direction, stop_sequence)
	)`,

	// Key/value metadata ({resource}_last_updated, ...)
	`CREATE TABLE IF NOT EXISTS metadata (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,

	// Per-resource ingestion run state
	`CREATE TABLE IF NOT EXISTS ingestion_status (
		resource        TEXT PRIMARY KEY,
		state           TEXT NOT NULL CHECK (state IN ('idle', 'running', 'failed')),
		last_success_at INTEGER,
		last_failure_at INTEGER,
		last_error      TEXT,
		updated_at      INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bus_routes_stop ON bus_routes(bus_stop_code)`,
	`CREATE INDEX IF NOT EXISTS idx_bus_stops_lat_lon ON bus_stops(latitude, longitude)`,
}
