package ingest

import (
	"context"
	"log/slog"
	"time"

	"sgbus/internal/datamall"
	"sgbus/internal/storage"
)

// Repository is the storage the ingestion pipeline writes to and reads
// freshness from. *storage.DB implements it.
type Repository interface {
	Count(ctx context.Context, res storage.Resource) (int, error)
	LastUpdated(ctx context.Context, res storage.Resource) (time.Time, bool, error)
	Status(ctx context.Context, res storage.Resource) (storage.ResourceStatus, error)
	MarkRunning(ctx context.Context, res storage.Resource) error
	MarkSucceeded(ctx context.Context, res storage.Resource) error
	MarkFailed(ctx context.Context, res storage.Resource, message string) error
	ReplaceBusStops(ctx context.Context, stops []storage.BusStop) error
	ReplaceBusRoutes(ctx context.Context, routes []storage.BusRoute) error
}

// Job fetches one resource in full and replaces its stored generation.
type Job struct {
	Resource storage.Resource
	Run      func(ctx context.Context) error
}

// BusStopsJob ingests the bus stop directory. maxPages <= 0 is unbounded.
func BusStopsJob(p *Pager, repo Repository, maxPages int, logger *slog.Logger) Job {
	return Job{
		Resource: storage.BusStops,
		Run: func(ctx context.Context) error {
			records, _, err := FetchAll[datamall.BusStop](ctx, p, storage.BusStops, datamall.BusStopsPath, maxPages)
			if err != nil {
				return err
			}
			warnIfEmpty(logger, storage.BusStops, len(records))

			stops := make([]storage.BusStop, len(records))
			for i, r := range records {
				stops[i] = storage.BusStop{
					Code:        r.BusStopCode,
					RoadName:    r.RoadName,
					Description: r.Description,
					Latitude:    r.Latitude,
					Longitude:   r.Longitude,
				}
			}
			return repo.ReplaceBusStops(ctx, stops)
		},
	}
}

// BusRoutesJob ingests the bus route directory. maxPages <= 0 is unbounded.
func BusRoutesJob(p *Pager, repo Repository, maxPages int, logger *slog.Logger) Job {
	return Job{
		Resource: storage.BusRoutes,
		Run: func(ctx context.Context) error {
			records, _, err := FetchAll[datamall.BusRoute](ctx, p, storage.BusRoutes, datamall.BusRoutesPath, maxPages)
			if err != nil {
				return err
			}
			warnIfEmpty(logger, storage.BusRoutes, len(records))

			routes := make([]storage.BusRoute, len(records))
			for i, r := range records {
				routes[i] = storage.BusRoute{
					ServiceNo:    r.ServiceNo,
					Operator:     r.Operator,
					Direction:    r.Direction,
					StopSequence: r.StopSequence,
					BusStopCode:  r.BusStopCode,
					DistanceKm:   r.Distance,
					WDFirstBus:   r.WDFirstBus,
					WDLastBus:    r.WDLastBus,
					SATFirstBus:  r.SATFirstBus,
					SATLastBus:   r.SATLastBus,
					SUNFirstBus:  r.SUNFirstBus,
					SUNLastBus:   r.SUNLastBus,
				}
			}
			return repo.ReplaceBusRoutes(ctx, routes)
		},
	}
}

// An empty upstream still replaces the table, leaving it empty.
// TODO: decide with product whether an empty first page should abort instead.
func warnIfEmpty(logger *slog.Logger, res storage.Resource, n int) {
	if n == 0 {
		logger.Warn("ingestion produced zero records, stored table will be emptied", "resource", res)
	}
}
