package handler

import (
	"net/http"

	"sgbus/internal/ingest"
)

type ingestionStatus struct {
	InProgress bool              `json:"in_progress"`
	Resources  []ingest.Snapshot `json:"resources"`
}

// IngestionStatus serves GET /api/ingestion.
func (h *Handler) IngestionStatus(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.status.Statuses(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ingestionStatus{InProgress: h.status.InProgress(), Resources: snaps})
}

// Health serves GET /healthz. It only checks that the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
