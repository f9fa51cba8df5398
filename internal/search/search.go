// Package search runs hybrid retrieval over the vector index: a sparse
// (lexical) and a dense (semantic) nearest-neighbour query for the same text,
// fused with Reciprocal Rank Fusion.
package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/logging"
)

// DefaultSparseLimit is how many sparse candidates are fetched before fusion.
const DefaultSparseLimit = 50

// Hit is one fused search result.
type Hit struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
	Score   float64        `json:"score"`
}

// Collection resolves the index collection for a tenant.
// *index.Schema satisfies it.
type Collection interface {
	CollectionName(tenant string) string
}

// Config holds the dependencies of an Engine.
type Config struct {
	// Client is the index service. Wrap it with index.WithRetry so
	// retrievals are retried.
	Client index.Client

	// Embedder turns query text into vectors.
	Embedder index.Embedder

	// Logger receives search failures. If nil, slog.Default is used.
	Logger *slog.Logger

	// Metrics records search outcomes. May be nil.
	Metrics *Metrics

	// SparseLimit is the sparse retrieval depth. Zero means DefaultSparseLimit.
	SparseLimit int

	// RRFK is the fusion rank offset. Zero means DefaultRRFK.
	RRFK int
}

// Engine runs hybrid searches.
type Engine struct {
	client      index.Client
	embed       index.Embedder
	log         *slog.Logger
	metrics     *Metrics
	sparseLimit int
	k           int
}

// New returns an Engine.
func New(cfg Config) *Engine {
	e := &Engine{
		client:      cfg.Client,
		embed:       cfg.Embedder,
		log:         logging.Component(cfg.Logger, "search"),
		metrics:     cfg.Metrics,
		sparseLimit: cfg.SparseLimit,
		k:           cfg.RRFK,
	}
	if e.sparseLimit <= 0 {
		e.sparseLimit = DefaultSparseLimit
	}
	if e.k <= 0 {
		e.k = DefaultRRFK
	}
	return e
}

// Search returns up to limit hits for query in coll, restricted to tenant
// when it is non-empty. Failures never surface as errors: a missing
// collection, an empty query, or a retrieval that keeps failing yields an
// empty result and a log line.
func (e *Engine) Search(ctx context.Context, coll Collection, query string, limit int, tenant string) []Hit {
	start := time.Now()
	name := coll.CollectionName(tenant)
	label := index.BaseCollection(name)
	log := e.log.With(slog.String("collection", name), slog.String("tenant", tenant))

	if limit <= 0 || name == "" {
		return []Hit{}
	}

	exists, err := e.client.CollectionExists(ctx, name)
	if err != nil {
		log.Error("search: collection check failed", slog.Any("error", err))
		e.metrics.observe(label, "error", time.Since(start))
		return []Hit{}
	}
	if !exists {
		log.Debug("search: collection does not exist")
		e.metrics.observe(label, "empty", time.Since(start))
		return []Hit{}
	}

	dense := e.embed.GenerateDense(ctx, query)
	sparse := e.embed.GenerateSparse(ctx, query)
	if len(dense) == 0 && sparse.Empty() {
		log.Warn("search: no query vectors produced")
		e.metrics.observe(label, "empty", time.Since(start))
		return []Hit{}
	}

	filter := index.TenantFilter(tenant)
	var sparseHits, denseHits []index.ScoredPoint

	g, gctx := errgroup.WithContext(ctx)
	if !sparse.Empty() {
		g.Go(func() error {
			var err error
			sparseHits, err = e.client.Query(gctx, index.Query{
				Collection: name,
				Sparse:     sparse,
				Filter:     filter,
				Limit:      e.sparseLimit,
			})
			return err
		})
	}
	if len(dense) > 0 {
		g.Go(func() error {
			var err error
			denseHits, err = e.client.Query(gctx, index.Query{
				Collection: name,
				Dense:      dense,
				Filter:     filter,
				Limit:      limit,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("search: retrieval failed", slog.Any("error", err))
		e.metrics.observe(label, "error", time.Since(start))
		return []Hit{}
	}

	hits := FuseRRF(e.k, onlyTenant(sparseHits, tenant), onlyTenant(denseHits, tenant))
	if len(hits) > limit {
		hits = hits[:limit]
	}

	outcome := "hits"
	if len(hits) == 0 {
		outcome = "empty"
	}
	e.metrics.observe(label, outcome, time.Since(start))
	log.Debug("search complete",
		slog.Int("sparse_hits", len(sparseHits)),
		slog.Int("dense_hits", len(denseHits)),
		slog.Int("returned", len(hits)),
		slog.Duration("duration", time.Since(start)),
	)
	if hits == nil {
		return []Hit{}
	}
	return hits
}

// onlyTenant drops hits owned by another tenant. The index filter already
// excludes them; this guards against a misconfigured collection.
func onlyTenant(points []index.ScoredPoint, tenant string) []index.ScoredPoint {
	if tenant == "" {
		return points
	}
	kept := points[:0:0]
	for _, p := range points {
		if org, _ := p.Payload[index.TenantField].(string); org == tenant {
			kept = append(kept, p)
		}
	}
	return kept
}
