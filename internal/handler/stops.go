package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"sgbus/internal/geo"
	"sgbus/internal/storage"
)

const (
	maxPageLimit     = 500
	defaultRadius    = 500.0
	maxRadius        = 2000.0
	defaultNearbyCap = 50
	maxNearbyCap     = 200
)

type stopsPage struct {
	Skip  int               `json:"skip"`
	Limit int               `json:"limit"`
	Stops []storage.BusStop `json:"stops"`
}

// ListStops serves GET /api/bus-stops?skip=&limit=.
func (h *Handler) ListStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, ok := intParam(q.Get("skip"), 0, 0, -1)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, ok := intParam(q.Get("limit"), maxPageLimit, 1, maxPageLimit)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	stops, err := h.db.ListBusStops(r.Context(), skip, limit)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stopsPage{Skip: skip, Limit: limit, Stops: stops})
}

// StopDetail serves GET /api/bus-stops/:code.
func (h *Handler) StopDetail(w http.ResponseWriter, r *http.Request) {
	code := httprouter.ParamsFromContext(r.Context()).ByName("code")

	stop, err := h.db.BusStopByCode(r.Context(), code)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "bus stop not found")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stop)
}

type nearbyResult struct {
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	Radius    float64              `json:"radius_meters"`
	Stops     []storage.NearbyStop `json:"stops"`
}

// NearbyStops serves GET /api/nearby-stops?lat=&lon=&radius=&limit=.
func (h *Handler) NearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || !(geo.Point{Lat: lat, Lon: lon}).Valid() {
		h.writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}

	radius := defaultRadius
	if v := q.Get("radius"); v != "" {
		var err error
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 || radius > maxRadius {
			h.writeError(w, http.StatusBadRequest, "radius must be between 0 and 2000 metres")
			return
		}
	}
	limit, ok := intParam(q.Get("limit"), defaultNearbyCap, 1, maxNearbyCap)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}

	stops, err := h.db.NearbyBusStops(r.Context(), lat, lon, radius, limit)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nearbyResult{Latitude: lat, Longitude: lon, Radius: radius, Stops: stops})
}

// intParam parses an optional integer query value. An empty value yields def.
// hi < 0 means no upper bound.
func intParam(v string, def, lo, hi int) (int, bool) {
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || (hi >= 0 && n > hi) {
		return 0, false
	}
	return n, true
}
