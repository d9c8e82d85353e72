package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"sgbus/internal/handler"
)

// Server is the read-only HTTP API over the stored bus directory.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a Server listening on port with all routes registered.
func New(port int, h *handler.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           withMiddleware(Routes(h, logger), logger),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		logger: logger,
	}
}

// Routes registers every API route on a new router.
func Routes(h *handler.Handler, logger *slog.Logger) *httprouter.Router {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/healthz", h.Health)

	// Bus stops
	router.HandlerFunc(http.MethodGet, "/api/bus-stops", h.ListStops)
	router.HandlerFunc(http.MethodGet, "/api/bus-stops/:code", h.StopDetail)
	router.HandlerFunc(http.MethodGet, "/api/nearby-stops", h.NearbyStops)

	// Services and routes
	router.HandlerFunc(http.MethodGet, "/api/services", h.Services)
	router.HandlerFunc(http.MethodGet, "/api/services/:serviceNo/routes", h.ServiceRoutes)

	// Ingestion
	router.HandlerFunc(http.MethodGet, "/api/ingestion", h.IngestionStatus)

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
