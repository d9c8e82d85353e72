package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"sgbus/internal/geo"
)

// Count returns the number of rows stored for res.
func (db *DB) Count(ctx context.Context, res Resource) (int, error) {
	var t table
	switch res {
	case BusStops:
		t = busStopsTable
	case BusRoutes:
		t = busRoutesTable
	default:
		return 0, fmt.Errorf("count: unknown resource %q", res)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.live).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", res, err)
	}
	return n, nil
}

// BusStopByCode returns a single stop, or ErrNotFound.
func (db *DB) BusStopByCode(ctx context.Context, code string) (BusStop, error) {
	var s BusStop
	err := db.QueryRowContext(ctx,
		`SELECT code, road_name, description, latitude, longitude FROM bus_stops WHERE code = ?`,
		code).Scan(&s.Code, &s.RoadName, &s.Description, &s.Latitude, &s.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return BusStop{}, ErrNotFound
	}
	if err != nil {
		return BusStop{}, fmt.Errorf("bus stop %s: %w", code, err)
	}
	return s, nil
}

// ListBusStops returns a page of stops ordered by code.
func (db *DB) ListBusStops(ctx context.Context, offset, limit int) ([]BusStop, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT code, road_name, description, latitude, longitude
		 FROM bus_stops ORDER BY code LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bus stops: %w", err)
	}
	defer rows.Close()

	stops := []BusStop{}
	for rows.Next() {
		var s BusStop
		if err := rows.Scan(&s.Code, &s.RoadName, &s.Description, &s.Latitude, &s.Longitude); err != nil {
			return nil, fmt.Errorf("scan bus stop: %w", err)
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// RoutesByService returns every stop of a service ordered by direction then
// stop sequence.
func (db *DB) RoutesByService(ctx context.Context, serviceNo string) ([]BusRoute, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT service_no, operator, direction, stop_sequence, bus_stop_code,
		       COALESCE(distance_km, 0), wd_first_bus, wd_last_bus,
		       sat_first_bus, sat_last_bus, sun_first_bus, sun_last_bus
		FROM bus_routes
		WHERE service_no = ?
		ORDER BY direction, stop_sequence`, serviceNo)
	if err != nil {
		return nil, fmt.Errorf("routes for service %s: %w", serviceNo, err)
	}
	defer rows.Close()

	routes := []BusRoute{}
	for rows.Next() {
		var r BusRoute
		if err := rows.Scan(&r.ServiceNo, &r.Operator, &r.Direction, &r.StopSequence, &r.BusStopCode,
			&r.DistanceKm, &r.WDFirstBus, &r.WDLastBus, &r.SATFirstBus, &r.SATLastBus,
			&r.SUNFirstBus, &r.SUNLastBus); err != nil {
			return nil, fmt.Errorf("scan bus route: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// Service summarises one bus service.
type Service struct {
	ServiceNo  string `json:"service_no"`
	Operator   string `json:"operator"`
	Directions int    `json:"directions"`
	Stops      int    `json:"stops"`
}

// ListServices returns every service with stored routes, ordered by service number.
func (db *DB) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT service_no, MIN(operator), COUNT(DISTINCT direction), COUNT(*)
		FROM bus_routes
		GROUP BY service_no
		ORDER BY service_no`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ServiceNo, &s.Operator, &s.Directions, &s.Stops); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// NearbyBusStops finds stops within radiusMeters of a point, nearest first.
// A bounding box narrows the scan, then great-circle distances filter it.
func (db *DB) NearbyBusStops(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]NearbyStop, error) {
	center := geo.Point{Lat: lat, Lon: lon}
	box := geo.BoxAround(center, radiusMeters)
	rows, err := db.QueryContext(ctx, `
		SELECT code, road_name, description, latitude, longitude
		FROM bus_stops
		WHERE latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?`,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("nearby stops query: %w", err)
	}
	defer rows.Close()

	stops := []NearbyStop{}
	for rows.Next() {
		var s NearbyStop
		if err := rows.Scan(&s.Code, &s.RoadName, &s.Description, &s.Latitude, &s.Longitude); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		s.DistanceMeters = center.DistanceTo(geo.Point{Lat: s.Latitude, Lon: s.Longitude})
		if s.DistanceMeters <= radiusMeters {
			stops = append(stops, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(stops, func(i, j int) bool { return stops[i].DistanceMeters < stops[j].DistanceMeters })
	if limit > 0 && len(stops) > limit {
		stops = stops[:limit]
	}
	return stops, nil
}
