// Package httpadapter exposes the operational HTTP surface: liveness,
// readiness, Prometheus metrics, and a read-only view of recently
// ingested events.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-ingest/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// RecentLister reads the events persisted since a cutoff, newest first.
type RecentLister interface {
	RecentEvents(ctx context.Context, cutoff time.Time) []domain.QuakeEvent
}

// Server exposes /healthz, /readyz, /metrics and /events/recent.
type Server struct {
	httpServer *http.Server
	recent     RecentLister
	window     time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates the operational HTTP server. window bounds the
// /events/recent lookback. Pass a nil clock to use the real clock.
func NewServer(addr string, ready ReadinessChecker, recent RecentLister,
	window time.Duration, clock clockwork.Clock, logger *slog.Logger) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		recent: recent,
		window: window,
		clock:  clock,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events/recent", s.handleRecent)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	cutoff := s.clock.Now().UTC().Add(-s.window)
	events := s.recent.RecentEvents(r.Context(), cutoff)
	if events == nil {
		events = []domain.QuakeEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":  cutoff.Format(time.RFC3339),
		"count":  len(events),
		"events": events,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
