package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/hiresync-go/internal/embedder"
	"github.com/54b3r/hiresync-go/internal/extractor"
	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/ingestion"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/provider"
	"github.com/54b3r/hiresync-go/internal/retry"
	"github.com/54b3r/hiresync-go/internal/search"
	"github.com/54b3r/hiresync-go/internal/server"
	"github.com/54b3r/hiresync-go/internal/similarity"
	"github.com/54b3r/hiresync-go/internal/store"
)

// app holds the components shared by every command: the primary store, the
// index client and the engines built on top of them. Writes made through
// the repositories are mirrored into the index by the subscribed syncers.
type app struct {
	log *slog.Logger

	db         *store.DB
	orgs       *store.Repository[*model.Organization]
	candidates *store.Repository[*model.Candidate]
	jobs       *store.Repository[*model.JobListing]

	client    index.Client
	embedder  *embedder.Provider
	candIndex *index.Syncer[*model.Candidate]
	jobIndex  *index.Syncer[*model.JobListing]

	search     *search.Engine
	similarity *similarity.Engine

	// pingers are the readiness probes of the external dependencies.
	pingers []server.Pinger

	closers []func()
}

// newApp opens the store, dials the index and assembles the embedding
// provider. Metrics of every component are registered with reg. The caller
// must call Close.
func newApp(log *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = openStore(log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.db.Close() })

	a.orgs = store.NewOrganizations(a.db, log)
	a.candidates = store.NewCandidates(a.db, log)
	a.jobs = store.NewJobListings(a.db, log)

	policy := retry.FromEnv()
	policy.Logger = log
	policy.Metrics = retry.NewMetrics(reg)

	raw, err := newIndexClient(log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = raw.Close() })
	a.client = index.WithRetry(raw, policy)

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, closeCache, err := embedder.NewProviderFromEnv(log, embedder.NewMetrics(reg), policy)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeCache)
	a.embedder = emb

	indexMetrics := index.NewMetrics(reg)
	workers := envInt("INDEX_WORKERS", 0)
	a.candIndex, err = index.NewSyncer(model.CandidateSchema(), a.client, emb, index.SyncerConfig{
		Logger: log, Metrics: indexMetrics, Workers: workers,
	})
	if err != nil {
		return nil, err
	}
	a.jobIndex, err = index.NewSyncer(model.JobListingSchema(), a.client, emb, index.SyncerConfig{
		Logger: log, Metrics: indexMetrics, Workers: workers,
	})
	if err != nil {
		return nil, err
	}
	a.candidates.Subscribe(a.candIndex)
	a.jobs.Subscribe(a.jobIndex)

	a.search = search.New(search.Config{
		Client:   a.client,
		Embedder: emb,
		Logger:   log,
		Metrics:  search.NewMetrics(reg),
	})
	a.similarity = similarity.New(a.client, log, similarity.NewMetrics(reg))

	a.pingers = []server.Pinger{raw, a.db}
	if embedder.Backend() != "none" {
		a.pingers = append(a.pingers, &server.EmbedderPinger{Embedder: emb})
	}
	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStore opens the SQLite store at HIRESYNC_DB, or at the default path
// (~/.hiresync/hiresync.db) when unset.
func openStore(log *slog.Logger) (*store.DB, error) {
	path := os.Getenv("HIRESYNC_DB")
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	log.Info("store opened", slog.String("path", path))
	return db, nil
}

// pingableClient is an index client that can report its own reachability.
type pingableClient interface {
	index.Client
	server.Pinger
}

// newIndexClient returns the index backend selected by INDEX_BACKEND:
// "qdrant" (default) or "memory", a non-persistent index for local runs.
func newIndexClient(log *slog.Logger) (pingableClient, error) {
	switch backend := strings.ToLower(envOrDefault("INDEX_BACKEND", "qdrant")); backend {
	case "qdrant":
		cfg := &index.QdrantConfig{
			Host:   os.Getenv("QDRANT_HOST"),
			Port:   envInt("QDRANT_PORT", 0),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: envBool("QDRANT_TLS"),
		}
		c, err := index.NewQdrantClient(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("index backend", slog.String("backend", backend),
			slog.String("host", cfg.Host), slog.Int("port", cfg.Port))
		return c, nil
	case "memory":
		log.Warn("index backend is in-memory, the index is lost on exit")
		return index.NewMemoryClient(), nil
	default:
		return nil, fmt.Errorf("index: unknown backend %q, valid values: qdrant, memory", backend)
	}
}

// resolver maps an entity name to its index syncer.
func (a *app) resolver(entity string) (interface{ CollectionName(string) string }, error) {
	switch entity {
	case model.EntityCandidates:
		return a.candIndex, nil
	case model.EntityJobs:
		return a.jobIndex, nil
	}
	return nil, fmt.Errorf("unknown entity %q, valid values: %s, %s", entity, model.EntityCandidates, model.EntityJobs)
}

// newPipeline builds the resume ingestion pipeline on top of the chat model
// selected by MODEL_PROVIDER.
func (a *app) newPipeline(ctx context.Context) (*ingestion.Pipeline, error) {
	chat, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	a.log.Info("provider initialised", slog.String("provider", string(provider.ConfigFromEnv().Backend)))

	return ingestion.NewPipeline(
		extractor.New(chat, a.log, extractor.WithMaxContextTokens(envInt("EXTRACT_MAX_CONTEXT_TOKENS", 0))),
		a.candidates, a.orgs,
		&ingestion.Config{Logger: a.log},
	)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
