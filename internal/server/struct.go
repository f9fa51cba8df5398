package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/ingestion"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/search"
	"github.com/54b3r/hiresync-go/internal/similarity"
	"github.com/54b3r/hiresync-go/internal/store"
)

// Config holds the configuration for the HTTP server.
type Config struct {
	// Host is the address the server binds to. Defaults to 127.0.0.1.
	Host string

	// Port is the TCP port the server listens on. Defaults to 8080.
	Port int

	// ReadTimeout is the maximum duration for reading the full request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out a response
	// write. Reindex requests can run long, so the default is generous.
	WriteTimeout time.Duration

	// ShutdownTimeout is how long Start waits for in-flight requests
	// after its context is cancelled.
	ShutdownTimeout time.Duration

	// Logger is the base logger. Each request gets a child logger with a
	// request_id. If nil, slog.Default is used.
	Logger *slog.Logger

	// Pingers are probed by GET /api/ready.
	Pingers []Pinger

	// RateLimit is the sustained per-IP request rate on /api routes.
	// Zero means defaultRateLimit.
	RateLimit float64

	// RateBurst is the per-IP burst size. Zero means defaultRateBurst.
	RateBurst int

	// APIKey enables Bearer authentication on /api routes when non-empty.
	// Health, readiness and metrics stay public.
	APIKey string

	// MetricsRegistry receives the server's own metrics. If nil,
	// prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer

	// MetricsGatherer backs GET /metrics. If nil,
	// prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer

	// DefaultLimit is the result count when a search or similarity request
	// sets none. Zero means 10.
	DefaultLimit int

	// MaxUploadBytes caps a resume upload. Zero means
	// ingestion.DefaultMaxBytes.
	MaxUploadBytes int64
}

// Deps are the domain components the handlers drive.
type Deps struct {
	Orgs       *store.Repository[*model.Organization]
	Candidates *store.Repository[*model.Candidate]
	Jobs       *store.Repository[*model.JobListing]

	// CandidateIndex and JobIndex resolve collections and run reindexing.
	// They are expected to be subscribed to the repositories already.
	CandidateIndex *index.Syncer[*model.Candidate]
	JobIndex       *index.Syncer[*model.JobListing]

	Search     *search.Engine
	Similarity *similarity.Engine

	// Ingest runs resume extraction. If nil, POST /api/resume/extract
	// answers 503.
	Ingest *ingestion.Pipeline
}

// Server is the hiresync HTTP API server.
type Server struct {
	// deps holds the domain components.
	deps Deps

	// cfg is the resolved server configuration.
	cfg *Config

	// httpServer is the underlying net/http server.
	httpServer *http.Server

	// handler is the full middleware chain around the router.
	handler http.Handler

	// log is the base logger.
	log *slog.Logger

	// pingers are the dependencies probed by /api/ready.
	pingers []Pinger

	// metrics holds the HTTP request metrics.
	metrics *serverMetrics

	// stopRL stops the rate limiter's eviction goroutine.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search/{entity}.
type searchRequest struct {
	// Query is the free-text search query.
	Query string `json:"query"`
	// Limit caps the number of results.
	Limit int `json:"limit,omitempty"`
}

// searchResponse is the JSON body returned by POST /api/search/{entity}.
type searchResponse struct {
	Results []search.Hit `json:"results"`
}

// similarityRequest is the JSON body for POST /api/similarity/{entity}.
// The path entity is the source type.
type similarityRequest struct {
	// SourceID is the entity compared against.
	SourceID string `json:"source_id"`
	// Target is the entity type of the targets. Defaults to the source type.
	Target string `json:"target,omitempty"`
	// TargetIDs lists the entities to score. When empty, the Limit
	// nearest entities of the target type are returned instead.
	TargetIDs []string `json:"target_ids,omitempty"`
	// Limit caps a nearest-neighbour request.
	Limit int `json:"limit,omitempty"`
}

// similarityResponse is the JSON body returned by POST /api/similarity/{entity}.
type similarityResponse struct {
	Results []similarity.Match `json:"results"`
}

// bulkStatusRequest is the JSON body for POST /api/candidates/bulk-status.
type bulkStatusRequest struct {
	// IDs restricts the update to these candidates. Empty means every
	// candidate of the organization.
	IDs []string `json:"ids,omitempty"`
	// FromStatus restricts the update to candidates currently in it.
	FromStatus model.CandidateStatus `json:"from_status,omitempty"`
	// Status is the new status.
	Status model.CandidateStatus `json:"status"`
}

// bulkStatusResponse reports how many candidates changed.
type bulkStatusResponse struct {
	Updated int `json:"updated"`
}

// extractRequest is the JSON form of POST /api/resume/extract.
type extractRequest struct {
	// Source is an http(s) URL of a plain-text resume.
	Source string `json:"source,omitempty"`
	// Text is the resume itself.
	Text string `json:"text,omitempty"`
}

// reindexResponse is the JSON body returned by POST /api/reindex/{entity}.
type reindexResponse struct {
	Entity    string   `json:"entity"`
	Total     int      `json:"total"`
	Indexed   int      `json:"indexed"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}
