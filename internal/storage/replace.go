package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sgbus/internal/logging"
)

// table describes a live table and its staging twin. The staging table has
// the same columns but no keys or checks, so constraint violations surface
// when rows are copied into the live table.
type table struct {
	live          string
	staging       string
	createStaging string
	columns       []string
}

var busStopsTable = table{
	live:    "bus_stops",
	staging: "bus_stops_staging",
	createStaging: `CREATE TABLE IF NOT EXISTS bus_stops_staging (
		code        TEXT,
		road_name   TEXT,
		description TEXT,
		latitude    REAL,
		longitude   REAL
	)`,
	columns: []string{"code", "road_name", "description", "latitude", "longitude"},
}

var busRoutesTable = table{
	live:    "bus_routes",
	staging: "bus_routes_staging",
	createStaging: `CREATE TABLE IF NOT EXISTS bus_routes_staging (
		service_no    TEXT,
		operator      TEXT,
		direction     INTEGER,
		stop_sequence INTEGER,
		bus_stop_code TEXT,
		distance_km   REAL,
		wd_first_bus  TEXT,
		wd_last_bus   TEXT,
		sat_first_bus TEXT,
		sat_last_bus  TEXT,
		sun_first_bus TEXT,
		sun_last_bus  TEXT
	)`,
	columns: []string{
		"service_no", "operator", "direction", "stop_sequence", "bus_stop_code", "distance_km",
		"wd_first_bus", "wd_last_bus", "sat_first_bus", "sat_last_bus", "sun_first_bus", "sun_last_bus",
	},
}

// ReplaceBusStops swaps the full bus stop directory for stops.
func (db *DB) ReplaceBusStops(ctx context.Context, stops []BusStop) error {
	return db.replaceAll(ctx, BusStops, busStopsTable, len(stops), func(stmt *sql.Stmt, i int) error {
		s := stops[i]
		_, err := stmt.ExecContext(ctx, s.Code, s.RoadName, s.Description, s.Latitude, s.Longitude)
		if err != nil {
			return fmt.Errorf("insert bus stop %s: %w", s.Code, err)
		}
		return nil
	})
}

// ReplaceBusRoutes swaps the full bus route directory for routes.
func (db *DB) ReplaceBusRoutes(ctx context.Context, routes []BusRoute) error {
	return db.replaceAll(ctx, BusRoutes, busRoutesTable, len(routes), func(stmt *sql.Stmt, i int) error {
		r := routes[i]
		_, err := stmt.ExecContext(ctx, r.ServiceNo, r.Operator, r.Direction, r.StopSequence,
			r.BusStopCode, r.DistanceKm, r.WDFirstBus, r.WDLastBus, r.SATFirstBus, r.SATLastBus,
			r.SUNFirstBus, r.SUNLastBus)
		if err != nil {
			return fmt.Errorf("insert bus route %s/%d/%d: %w", r.ServiceNo, r.Direction, r.StopSequence, err)
		}
		return nil
	})
}

// replaceAll loads n rows into the staging table, swaps them into the live
// table and stamps the resource's last-updated marker, all in one
// transaction. On any error nothing is committed and the previous
// generation stays visible.
func (db *DB) replaceAll(ctx context.Context, res Resource, t table, n int, insert func(*sql.Stmt, int) error) error {
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin transaction", res, err)
	}
	defer logging.SafeRollbackWithLogging(tx, db.logger, "replace "+t.live)

	if _, err := tx.ExecContext(ctx, t.createStaging); err != nil {
		return persistErr("create staging", res, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.staging); err != nil {
		return persistErr("clear staging", res, err)
	}

	if err := fillStaging(ctx, tx, t, n, insert); err != nil {
		return persistErr("fill staging", res, err)
	}

	cols := strings.Join(t.columns, ", ")
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.live); err != nil {
		return persistErr("clear live", res, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", t.live, cols, cols, t.staging)); err != nil {
		return persistErr("swap staging into live", res, err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+t.staging); err != nil {
		return persistErr("drop staging", res, err)
	}

	now := db.now()
	if err := setMetadata(ctx, tx, res.LastUpdatedKey(), strconv.FormatInt(now.UnixMilli(), 10), now); err != nil {
		return persistErr("set last updated", res, err)
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit", res, err)
	}

	db.logger.Info("replace complete",
		"resource", res,
		"rows", n,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func fillStaging(ctx context.Context, tx *sql.Tx, t table, n int, insert func(*sql.Stmt, int) error) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.staging, strings.Join(t.columns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t.staging, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := insert(stmt, i); err != nil {
			return err
		}
	}
	return nil
}
