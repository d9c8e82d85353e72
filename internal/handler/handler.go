package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"sgbus/internal/ingest"
	"sgbus/internal/storage"
)

// Store is the read side of the bus directory. *storage.DB implements it.
type Store interface {
	ListBusStops(ctx context.Context, offset, limit int) ([]storage.BusStop, error)
	BusStopByCode(ctx context.Context, code string) (storage.BusStop, error)
	NearbyBusStops(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]storage.NearbyStop, error)
	ListServices(ctx context.Context) ([]storage.Service, error)
	RoutesByService(ctx context.Context, serviceNo string) ([]storage.BusRoute, error)
	PingContext(ctx context.Context) error
}

// StatusSource reports ingestion progress. *ingest.Scheduler implements it.
type StatusSource interface {
	Statuses(ctx context.Context) ([]ingest.Snapshot, error)
	InProgress() bool
}

// aggregateTTL bounds how long a replaced route generation can be served
// from the service caches.
const aggregateTTL = time.Minute

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	db     Store
	status StatusSource
	logger *slog.Logger

	services *ttlCache[[]storage.Service]
	routes   *ttlCache[[]storage.BusRoute]
}

// New creates a Handler.
func New(db Store, status StatusSource, logger *slog.Logger) *Handler {
	return &Handler{
		db:       db,
		status:   status,
		logger:   logger,
		services: newTTLCache[[]storage.Service](aggregateTTL),
		routes:   newTTLCache[[]storage.BusRoute](aggregateTTL),
	}
}

type errorBody struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Code: status, Error: msg})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}
