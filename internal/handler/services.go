package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"sgbus/internal/storage"
)

// Services serves GET /api/services.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	services, ok := h.services.Get("all")
	if !ok {
		var err error
		services, err = h.db.ListServices(r.Context())
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		h.services.Set("all", services)
	}
	h.writeJSON(w, http.StatusOK, map[string][]storage.Service{"services": services})
}

type serviceRoutes struct {
	ServiceNo string             `json:"service_no"`
	Routes    []storage.BusRoute `json:"routes"`
}

// ServiceRoutes serves GET /api/services/:serviceNo/routes.
func (h *Handler) ServiceRoutes(w http.ResponseWriter, r *http.Request) {
	serviceNo := httprouter.ParamsFromContext(r.Context()).ByName("serviceNo")

	routes, ok := h.routes.Get(serviceNo)
	if !ok {
		var err error
		routes, err = h.db.RoutesByService(r.Context(), serviceNo)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		if len(routes) > 0 {
			h.routes.Set(serviceNo, routes)
		}
	}
	if len(routes) == 0 {
		h.writeError(w, http.StatusNotFound, "service not found")
		return
	}
	h.writeJSON(w, http.StatusOK, serviceRoutes{ServiceNo: serviceNo, Routes: routes})
}
