// Package server implements the hiresync HTTP API: hybrid search and
// similarity over the vector index, record writes that flow through the
// store into the index, resume extraction and on-demand reindexing.
// The server is started by the `hiresync serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/hiresync-go/internal/extractor"
	"github.com/54b3r/hiresync-go/internal/ingestion"
	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/store"
)

// tenantHeader carries the organization a request acts for.
const tenantHeader = "X-Organization-ID"

// New constructs a Server from the provided components and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	switch {
	case deps.Orgs == nil, deps.Candidates == nil, deps.Jobs == nil:
		return nil, fmt.Errorf("server: repositories must not be nil")
	case deps.CandidateIndex == nil, deps.JobIndex == nil:
		return nil, fmt.Errorf("server: index syncers must not be nil")
	case deps.Search == nil, deps.Similarity == nil:
		return nil, fmt.Errorf("server: search and similarity engines must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = ingestion.DefaultMaxBytes
	}

	log := logging.Component(cfg.Logger, "server")
	if cfg.APIKey == "" {
		log.Warn("server: HIRESYNC_API_KEY is not set, /api routes are unauthenticated")
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	rl.onReject = s.metrics.rejected
	s.stopRL = stop
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/search/{entity}", protect(s.handleSearch))
	mux.Handle("POST /api/similarity/{entity}", protect(s.handleSimilarity))

	candidates, jobs := candidateResource(deps), jobResource(deps)
	mux.Handle("POST /api/candidates", protect(candidates.create))
	mux.Handle("GET /api/candidates/{id}", protect(candidates.get))
	mux.Handle("PUT /api/candidates/{id}", protect(candidates.update))
	mux.Handle("DELETE /api/candidates/{id}", protect(candidates.remove))
	mux.Handle("POST /api/candidates/bulk-status", protect(s.handleBulkStatus))

	mux.Handle("POST /api/jobs", protect(jobs.create))
	mux.Handle("GET /api/jobs/{id}", protect(jobs.get))
	mux.Handle("PUT /api/jobs/{id}", protect(jobs.update))
	mux.Handle("DELETE /api/jobs/{id}", protect(jobs.remove))

	mux.Handle("POST /api/resume/extract", protect(s.handleExtract))
	mux.Handle("POST /api/reindex/{entity}", protect(s.handleReindex))

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(log, s.metrics.instrument(mux))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError replies with a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeFailure maps err to a status code. Client errors echo the message;
// everything else is logged and answered with a generic 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
		writeError(w, r, status, "internal error")
		return
	}
	writeError(w, r, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalid),
		errors.Is(err, ingestion.ErrUnsupportedFileType),
		errors.Is(err, ingestion.ErrNotText),
		errors.Is(err, extractor.ErrEmptyResume):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extractor.ErrNoFields):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", model.ErrInvalid, err)
	}
	return nil
}
