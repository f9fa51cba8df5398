// Package similarity scores entities against each other using the dense
// vectors already stored in the index, e.g. how well each candidate fits a
// job listing. Nothing is re-embedded.
package similarity

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/logging"
)

// Collection resolves the index collection for a tenant.
// *index.Schema satisfies it.
type Collection interface {
	CollectionName(tenant string) string
}

// Request compares one source entity to a set of targets.
type Request struct {
	// Source holds the source entity.
	Source Collection
	// Target holds the targets. If nil, Source is used.
	Target Collection
	// SourceID is the entity whose vector is compared against.
	SourceID string
	// TargetIDs are the entities to score.
	TargetIDs []string
	// Tenant restricts source and targets to one organization when non-empty.
	Tenant string
}

// Match is one scored target.
type Match struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Engine computes similarity scores.
type Engine struct {
	client  index.Client
	log     *slog.Logger
	metrics *Metrics
}

// New returns an Engine reading vectors through client. m may be nil.
func New(client index.Client, log *slog.Logger, m *Metrics) *Engine {
	return &Engine{
		client:  client,
		log:     logging.Component(log, "similarity"),
		metrics: m,
	}
}

// CompareOne scores every target against the source by cosine similarity of
// their dense vectors, highest first; equal scores keep TargetIDs order.
// Targets without a stored vector, or owned by another tenant, are dropped.
// A missing collection or source vector yields an empty result.
func (e *Engine) CompareOne(ctx context.Context, req Request) []Match {
	start := time.Now()
	if req.Target == nil {
		req.Target = req.Source
	}
	srcName := req.Source.CollectionName(req.Tenant)
	tgtName := req.Target.CollectionName(req.Tenant)
	label := index.BaseCollection(tgtName)
	log := e.log.With(
		slog.String("source_collection", srcName),
		slog.String("target_collection", tgtName),
		slog.String("source_id", req.SourceID),
		slog.String("tenant", req.Tenant),
	)

	if srcName == "" || tgtName == "" || req.SourceID == "" || len(req.TargetIDs) == 0 {
		return []Match{}
	}

	source, ok := e.sourceVector(ctx, log, srcName, req.SourceID, req.Tenant)
	if !ok {
		e.metrics.observe(label, "empty", time.Since(start))
		return []Match{}
	}
	if tgtName != srcName {
		exists, err := e.client.CollectionExists(ctx, tgtName)
		if err != nil || !exists {
			if err != nil {
				log.Error("similarity: target collection check failed", slog.Any("error", err))
			}
			e.metrics.observe(label, "empty", time.Since(start))
			return []Match{}
		}
	}

	ids := dedupe(req.TargetIDs)
	records, err := e.client.Retrieve(ctx, tgtName, ids)
	if err != nil {
		log.Error("similarity: target retrieval failed", slog.Any("error", err))
		e.metrics.observe(label, "error", time.Since(start))
		return []Match{}
	}
	byID := make(map[string]index.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	matches := make([]Match, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok || len(r.Dense) == 0 || r.Payload == nil {
			continue
		}
		if !ownedBy(r.Payload, req.Tenant) {
			log.Warn("similarity: dropping target from another tenant", slog.String("target_id", id))
			continue
		}
		if len(r.Dense) != len(source) {
			log.Warn("similarity: dimension mismatch",
				slog.String("target_id", id),
				slog.Int("source_dims", len(source)),
				slog.Int("target_dims", len(r.Dense)),
			)
			continue
		}
		matches = append(matches, Match{ID: id, Score: Cosine(source, r.Dense), Payload: r.Payload})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	e.metrics.observe(label, "ok", time.Since(start))
	return matches
}

// Nearest returns the limit entities of the target collection closest to the
// source's stored vector, using the index's own nearest-neighbour search.
// The source itself is excluded when both live in the same collection.
func (e *Engine) Nearest(ctx context.Context, req Request, limit int) []Match {
	start := time.Now()
	if req.Target == nil {
		req.Target = req.Source
	}
	srcName := req.Source.CollectionName(req.Tenant)
	tgtName := req.Target.CollectionName(req.Tenant)
	label := index.BaseCollection(tgtName)
	log := e.log.With(
		slog.String("source_collection", srcName),
		slog.String("target_collection", tgtName),
		slog.String("source_id", req.SourceID),
	)
	if srcName == "" || tgtName == "" || req.SourceID == "" || limit <= 0 {
		return []Match{}
	}

	source, ok := e.sourceVector(ctx, log, srcName, req.SourceID, req.Tenant)
	if !ok {
		e.metrics.observe(label, "empty", time.Since(start))
		return []Match{}
	}
	if tgtName != srcName {
		if exists, err := e.client.CollectionExists(ctx, tgtName); err != nil || !exists {
			e.metrics.observe(label, "empty", time.Since(start))
			return []Match{}
		}
	}

	fetch := limit
	if tgtName == srcName {
		fetch++
	}
	hits, err := e.client.Query(ctx, index.Query{
		Collection: tgtName,
		Dense:      source,
		Filter:     index.TenantFilter(req.Tenant),
		Limit:      fetch,
	})
	if err != nil {
		log.Error("similarity: nearest query failed", slog.Any("error", err))
		e.metrics.observe(label, "error", time.Since(start))
		return []Match{}
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if (tgtName == srcName && h.ID == req.SourceID) || !ownedBy(h.Payload, req.Tenant) {
			continue
		}
		matches = append(matches, Match{ID: h.ID, Score: h.Score, Payload: h.Payload})
		if len(matches) == limit {
			break
		}
	}
	e.metrics.observe(label, "ok", time.Since(start))
	return matches
}

func (e *Engine) sourceVector(ctx context.Context, log *slog.Logger, collection, id, tenant string) ([]float32, bool) {
	exists, err := e.client.CollectionExists(ctx, collection)
	if err != nil {
		log.Error("similarity: source collection check failed", slog.Any("error", err))
		return nil, false
	}
	if !exists {
		log.Debug("similarity: source collection does not exist")
		return nil, false
	}
	records, err := e.client.Retrieve(ctx, collection, []string{id})
	if err != nil {
		log.Error("similarity: source retrieval failed", slog.Any("error", err))
		return nil, false
	}
	if len(records) == 0 || len(records[0].Dense) == 0 {
		log.Debug("similarity: source has no stored vector")
		return nil, false
	}
	if !ownedBy(records[0].Payload, tenant) {
		log.Warn("similarity: source belongs to another tenant")
		return nil, false
	}
	return records[0].Dense, true
}

// Cosine returns the cosine similarity of a and b, computed in float64.
// Vectors of different length or with zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func ownedBy(payload map[string]any, tenant string) bool {
	if tenant == "" {
		return true
	}
	org, _ := payload[index.TenantField].(string)
	return org == tenant
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Metrics holds the Prometheus metrics owned by the similarity engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the similarity metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "similarity",
			Name:      "requests_total",
			Help:      "Total number of similarity requests, partitioned by target collection and outcome.",
		}, []string{"collection", "outcome"}),
		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hiresync",
			Subsystem: "similarity",
			Name:      "duration_seconds",
			Help:      "Latency of similarity requests.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"collection"}),
	}
}

func (m *Metrics) observe(collection, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(collection, outcome).Inc()
	m.durationSeconds.WithLabelValues(collection).Observe(d.Seconds())
}
