package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/geosphere-warnings/internal/sensor"
)

// refreshSlack lets a refresh that ends at the fetch deadline store its
// outcome before the handler stops waiting.
const refreshSlack = time.Second

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SensorView is the entity surface served over HTTP.
type SensorView interface {
	Snapshot() sensor.Snapshot
	Update(ctx context.Context)
}

// Options configures the HTTP server.
type Options struct {
	Addr             string
	RefreshPerMinute int
	FetchTimeout     time.Duration // bound on one warnings fetch
	Rejected         prometheus.Counter // incremented on throttled refresh requests; may be nil
}

// Server exposes health, readiness, metrics, and sensor endpoints.
type Server struct {
	httpServer *http.Server
	ready      ReadinessChecker
	sensor     SensorView
	limiter    *rate.Limiter
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// GET /api/v1/sensor, and POST /api/v1/refresh routes.
func NewServer(opts Options, ready ReadinessChecker, view SensorView, logger *slog.Logger) *Server {
	if opts.RefreshPerMinute <= 0 {
		opts.RefreshPerMinute = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: opts.FetchTimeout + refreshSlack + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ready:   ready,
		sensor:  view,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RefreshPerMinute)), opts.RefreshPerMinute),
		opts:    opts,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/sensor", s.handleSensor)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)

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

// handleSensor serves the snapshot once the first refresh has completed.
// Before that the count would be an artificial zero.
func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.sensor.Snapshot())
}

// handleRefresh triggers an on-demand refresh. Requests arriving while a
// fetch is in flight share its result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		if s.opts.Rejected != nil {
			s.opts.Rejected.Inc()
		}
		s.logger.Warn("refresh request throttled", "remote", r.RemoteAddr)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"status": "throttled",
			"error":  "refresh rate limit exceeded",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.FetchTimeout+refreshSlack)
	defer cancel()

	s.sensor.Update(ctx)
	writeJSON(w, http.StatusOK, s.sensor.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
