package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/54b3r/hiresync-go/internal/embedder"
	"github.com/54b3r/hiresync-go/internal/logging"
)

// DefaultWorkers is the bulk upsert concurrency when SyncerConfig.Workers is zero.
const DefaultWorkers = 8

// Embedder produces the vectors for a point. *embedder.Provider satisfies it.
// Both methods signal failure with an empty result rather than an error.
type Embedder interface {
	GenerateDense(ctx context.Context, text string) []float32
	GenerateSparse(ctx context.Context, text string) embedder.SparseVector
	Dimensions() int
}

// SyncerConfig holds the optional dependencies of a Syncer.
type SyncerConfig struct {
	// Logger receives sync outcomes. If nil, slog.Default is used.
	Logger *slog.Logger

	// Metrics records sync counters. May be nil.
	Metrics *Metrics

	// Workers bounds concurrent upserts in UpsertMany. Zero means DefaultWorkers.
	Workers int
}

// Report summarises a bulk upsert.
type Report struct {
	// Total is the number of entities submitted.
	Total int
	// Indexed is the number written to the index.
	Indexed int
	// FailedIDs lists entities that were skipped or failed, sorted.
	FailedIDs []string
}

// Failed returns the number of entities that were not indexed.
func (r Report) Failed() int { return len(r.FailedIDs) }

// Syncer mirrors entities of type E into the index. Every public method
// reports failure through its return value and the log; none of them panic
// or return errors to the store, so a failing index never blocks a write
// to the primary database.
type Syncer[E any] struct {
	schema  *Schema[E]
	client  Client
	embed   Embedder
	log     *slog.Logger
	metrics *Metrics
	workers int

	// ensured caches collections known to exist.
	ensured sync.Map
}

// NewSyncer validates schema and returns a Syncer writing through client.
func NewSyncer[E any](schema *Schema[E], client Client, embed Embedder, cfg SyncerConfig) (*Syncer[E], error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("index: syncer requires a client")
	}
	if embed == nil {
		return nil, errors.New("index: syncer requires an embedder")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Syncer[E]{
		schema:  schema,
		client:  client,
		embed:   embed,
		log:     logging.Component(cfg.Logger, "index").With(slog.String("collection", schema.Collection)),
		metrics: cfg.Metrics,
		workers: workers,
	}, nil
}

// Schema returns the schema this syncer indexes with.
func (s *Syncer[E]) Schema() *Schema[E] { return s.schema }

// CollectionName returns the collection holding tenant's points.
func (s *Syncer[E]) CollectionName(tenant string) string { return s.schema.CollectionName(tenant) }

// EnsureCollection creates tenant's collection if it does not exist. Losing
// a creation race to another writer counts as success.
func (s *Syncer[E]) EnsureCollection(ctx context.Context, tenant string) error {
	name := s.schema.CollectionName(tenant)
	if name == "" {
		return fmt.Errorf("index: %s is tenant scoped and no tenant was given", s.schema.Collection)
	}
	if _, ok := s.ensured.Load(name); ok {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("index: check collection %q: %w", name, err)
	}
	if !exists {
		spec := CollectionSpec{Name: name}
		if len(s.schema.DenseFields) > 0 && s.embed.Dimensions() > 0 {
			spec.DenseSize = uint64(s.embed.Dimensions())
		}
		err := s.client.CreateCollection(ctx, spec)
		switch {
		case errors.Is(err, ErrCollectionExists):
			s.log.Debug("collection created concurrently", slog.String("name", name))
		case err != nil:
			return fmt.Errorf("index: create collection %q: %w", name, err)
		default:
			s.log.Info("collection created", slog.String("name", name), slog.Uint64("dense_size", spec.DenseSize))
		}
	}
	s.ensured.Store(name, struct{}{})
	return nil
}

// BuildPoint renders e into a point: payload, dense vector of the
// DenseFields text and sparse vector of the SparseFields text. Vectors for
// empty text, or whose embedding failed, are left empty.
func (s *Syncer[E]) BuildPoint(ctx context.Context, e E) Point {
	p := Point{
		ID:      s.schema.ID(e),
		Payload: s.schema.Payload(e),
	}
	if len(s.schema.DenseFields) > 0 {
		if text := s.schema.Text(e, s.schema.DenseFields); text != "" {
			p.Dense = s.embed.GenerateDense(ctx, text)
		}
	}
	if len(s.schema.SparseFields) > 0 {
		if text := s.schema.Text(e, s.schema.SparseFields); text != "" {
			p.Sparse = s.embed.GenerateSparse(ctx, text)
		}
	}
	return p
}

// Upsert writes e to its tenant's collection and reports whether the point
// was stored. Entities for which neither vector could be produced are
// skipped rather than written without vectors.
func (s *Syncer[E]) Upsert(ctx context.Context, e E) bool {
	start := time.Now()
	id := s.schema.ID(e)
	tenant := s.schema.TenantOf(e)
	log := s.log.With(slog.String("id", id), slog.String("tenant", tenant))

	if id == "" {
		log.Error("index upsert skipped: entity has no id")
		s.metrics.observe(s.schema.Collection, "upsert", "skipped", time.Since(start))
		return false
	}
	collection := s.schema.CollectionName(tenant)
	if collection == "" {
		log.Error("index upsert skipped: tenant-scoped entity has no tenant")
		s.metrics.observe(s.schema.Collection, "upsert", "skipped", time.Since(start))
		return false
	}

	point := s.BuildPoint(ctx, e)
	if len(point.Dense) == 0 && point.Sparse.Empty() {
		log.Warn("index upsert skipped: no vectors produced")
		s.metrics.observe(s.schema.Collection, "upsert", "skipped", time.Since(start))
		return false
	}
	if dims := s.embed.Dimensions(); len(point.Dense) > 0 && dims > 0 && len(point.Dense) != dims {
		log.Error("index upsert skipped: dense vector has wrong dimensions",
			slog.Int("got", len(point.Dense)),
			slog.Int("want", dims),
		)
		s.metrics.observe(s.schema.Collection, "upsert", "skipped", time.Since(start))
		return false
	}

	if err := s.EnsureCollection(ctx, tenant); err != nil {
		log.Error("index upsert failed", slog.String("error", err.Error()))
		s.metrics.observe(s.schema.Collection, "upsert", "failed", time.Since(start))
		return false
	}
	err := s.client.Upsert(ctx, collection, []Point{point})
	if collectionMissing(err) {
		// Dropped behind our back: forget it, recreate and write once more.
		log.Warn("collection disappeared, recreating", slog.String("name", collection))
		s.ensured.Delete(collection)
		if err = s.EnsureCollection(ctx, tenant); err == nil {
			err = s.client.Upsert(ctx, collection, []Point{point})
		}
	}
	if err != nil {
		log.Error("index upsert failed", slog.String("error", err.Error()))
		s.metrics.observe(s.schema.Collection, "upsert", "failed", time.Since(start))
		return false
	}

	log.Debug("index upsert complete",
		slog.Bool("dense", len(point.Dense) > 0),
		slog.Int("sparse_terms", len(point.Sparse.Indices)),
		slog.Duration("duration", time.Since(start)),
	)
	s.metrics.observe(s.schema.Collection, "upsert", "ok", time.Since(start))
	return true
}

// Delete removes e's point.
func (s *Syncer[E]) Delete(ctx context.Context, e E) bool {
	return s.DeleteID(ctx, s.schema.ID(e), s.schema.TenantOf(e))
}

// DeleteID removes the point for id from tenant's collection. A missing
// collection or point counts as success.
func (s *Syncer[E]) DeleteID(ctx context.Context, id, tenant string) bool {
	start := time.Now()
	log := s.log.With(slog.String("id", id), slog.String("tenant", tenant))

	collection := s.schema.CollectionName(tenant)
	if id == "" || collection == "" {
		log.Error("index delete skipped: missing id or tenant")
		s.metrics.observe(s.schema.Collection, "delete", "skipped", time.Since(start))
		return false
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		log.Error("index delete failed", slog.String("error", err.Error()))
		s.metrics.observe(s.schema.Collection, "delete", "failed", time.Since(start))
		return false
	}
	if !exists {
		s.metrics.observe(s.schema.Collection, "delete", "ok", time.Since(start))
		return true
	}
	if err := s.client.Delete(ctx, collection, []string{id}); err != nil {
		log.Error("index delete failed", slog.String("error", err.Error()))
		s.metrics.observe(s.schema.Collection, "delete", "failed", time.Since(start))
		return false
	}
	s.metrics.observe(s.schema.Collection, "delete", "ok", time.Since(start))
	return true
}

// UpsertMany upserts entities concurrently on a bounded worker pool and
// reports which ones failed. One entity failing never aborts the others.
func (s *Syncer[E]) UpsertMany(ctx context.Context, entities []E) Report {
	report := Report{Total: len(entities)}
	if len(entities) == 0 {
		return report
	}
	start := time.Now()

	var mu sync.Mutex
	record := func(e E, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			report.Indexed++
			return
		}
		report.FailedIDs = append(report.FailedIDs, s.schema.ID(e))
	}

	pool, err := ants.NewPool(min(s.workers, len(entities)))
	if err != nil {
		s.log.Warn("worker pool unavailable, upserting sequentially", slog.String("error", err.Error()))
		for _, e := range entities {
			record(e, s.safeUpsert(ctx, e))
		}
	} else {
		defer pool.Release()
		var wg sync.WaitGroup
		for _, e := range entities {
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				record(e, s.safeUpsert(ctx, e))
			}); err != nil {
				wg.Done()
				record(e, s.safeUpsert(ctx, e))
			}
		}
		wg.Wait()
	}

	slices.Sort(report.FailedIDs)
	s.metrics.bulkFailures(s.schema.Collection, report.Failed())
	if report.Failed() > 0 {
		s.log.Error("bulk index upsert incomplete",
			slog.Int("total", report.Total),
			slog.Int("failed", report.Failed()),
			slog.Any("failed_ids", report.FailedIDs),
			slog.Duration("duration", time.Since(start)),
		)
	} else {
		s.log.Info("bulk index upsert complete",
			slog.Int("total", report.Total),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return report
}

// safeUpsert is Upsert with panics turned into a failed result.
func (s *Syncer[E]) safeUpsert(ctx context.Context, e E) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("index upsert panicked", slog.Any("panic", r))
			ok = false
		}
	}()
	return s.Upsert(ctx, e)
}

// OnCreated indexes a newly created entity.
func (s *Syncer[E]) OnCreated(ctx context.Context, e E) {
	defer s.recoverHook("created")
	s.Upsert(ctx, e)
}

// OnUpdated re-indexes an updated entity.
func (s *Syncer[E]) OnUpdated(ctx context.Context, e E) {
	defer s.recoverHook("updated")
	s.Upsert(ctx, e)
}

// OnDeleted removes a deleted entity from the index.
func (s *Syncer[E]) OnDeleted(ctx context.Context, e E) {
	defer s.recoverHook("deleted")
	s.Delete(ctx, e)
}

// OnBulkUpdated re-indexes entities touched by a bulk update. Whole-set
// updates that bypass per-entity events would otherwise leave the index stale.
func (s *Syncer[E]) OnBulkUpdated(ctx context.Context, entities []E) {
	defer s.recoverHook("bulk_updated")
	s.UpsertMany(ctx, entities)
}

func (s *Syncer[E]) recoverHook(event string) {
	if r := recover(); r != nil {
		s.log.Error("index hook panicked",
			slog.String("event", event),
			slog.Any("panic", r),
		)
	}
}

// collectionMissing reports whether err is the NotFound status Qdrant and
// MemoryClient return for writes to an absent collection.
func collectionMissing(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}
