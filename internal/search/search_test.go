package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/hiresync-go/internal/embedder"
	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
)

// staticEmbedder returns the same vectors for every query.
type staticEmbedder struct {
	dense  []float32
	sparse embedder.SparseVector
}

func (s staticEmbedder) Dimensions() int { return len(s.dense) }

func (s staticEmbedder) GenerateDense(context.Context, string) []float32 { return s.dense }

func (s staticEmbedder) GenerateSparse(context.Context, string) embedder.SparseVector {
	return s.sparse
}

// fixedCollection resolves every tenant to the same collection.
type fixedCollection string

func (f fixedCollection) CollectionName(string) string { return string(f) }

// failingClient fails every query.
type failingClient struct {
	*index.MemoryClient
}

func (failingClient) Query(context.Context, index.Query) ([]index.ScoredPoint, error) {
	return nil, errors.New("index unavailable")
}

func seed(t *testing.T) *index.MemoryClient {
	t.Helper()
	ctx := context.Background()
	mem := index.NewMemoryClient()
	if err := mem.CreateCollection(ctx, index.CollectionSpec{Name: "docs", DenseSize: 2}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	point := func(id, org string, dense []float32, term uint32) index.Point {
		return index.Point{
			ID:      id,
			Payload: map[string]any{index.IDField: id, index.TenantField: org},
			Dense:   dense,
			Sparse:  embedder.SparseVector{Indices: []uint32{term}, Values: []float32{1}},
		}
	}
	err := mem.Upsert(ctx, "docs", []index.Point{
		point("p1", "o1", []float32{1, 0}, 1),
		point("p2", "o1", []float32{0, 1}, 2),
		point("p3", "o2", []float32{1, 0}, 1),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return mem
}

func queryEmbedder() staticEmbedder {
	return staticEmbedder{
		dense:  []float32{1, 0},
		sparse: embedder.SparseVector{Indices: []uint32{1}, Values: []float32{1}},
	}
}

func TestSearch_FusesSparseAndDense(t *testing.T) {
	t.Parallel()
	e := New(Config{Client: seed(t), Embedder: queryEmbedder(), Logger: logging.Discard()})

	hits := e.Search(context.Background(), fixedCollection("docs"), "go", 10, "")
	want := []struct {
		id    string
		score float64
	}{
		{"p1", 2.0 / 61},
		{"p3", 2.0 / 62},
		{"p2", 1.0 / 63},
	}
	if len(hits) != len(want) {
		t.Fatalf("want %d hits, got %+v", len(want), hits)
	}
	for i, w := range want {
		if hits[i].ID != w.id || math.Abs(hits[i].Score-w.score) > 1e-12 {
			t.Errorf("hit %d = %s/%v, want %s/%v", i, hits[i].ID, hits[i].Score, w.id, w.score)
		}
	}
}

func TestSearch_TenantFilter(t *testing.T) {
	t.Parallel()
	e := New(Config{Client: seed(t), Embedder: queryEmbedder(), Logger: logging.Discard()})

	hits := e.Search(context.Background(), fixedCollection("docs"), "go", 10, "o1")
	if len(hits) != 2 || hits[0].ID != "p1" || hits[1].ID != "p2" {
		t.Fatalf("want [p1 p2], got %+v", hits)
	}
	for _, h := range hits {
		if h.Payload[index.TenantField] != "o1" {
			t.Errorf("hit %s leaked from tenant %v", h.ID, h.Payload[index.TenantField])
		}
	}
}

func TestSearch_Truncates(t *testing.T) {
	t.Parallel()
	e := New(Config{Client: seed(t), Embedder: queryEmbedder(), Logger: logging.Discard()})

	hits := e.Search(context.Background(), fixedCollection("docs"), "go", 1, "")
	if len(hits) != 1 || hits[0].ID != "p1" {
		t.Fatalf("want only p1, got %+v", hits)
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		client index.Client
		emb    staticEmbedder
		coll   string
		limit  int
	}{
		{"missing collection", index.NewMemoryClient(), queryEmbedder(), "docs", 10},
		{"no query vectors", seed(t), staticEmbedder{}, "docs", 10},
		{"zero limit", seed(t), queryEmbedder(), "docs", 0},
		{"unresolved collection", seed(t), queryEmbedder(), "", 10},
		{"retrieval error", failingClient{seed(t)}, queryEmbedder(), "docs", 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := New(Config{Client: tc.client, Embedder: tc.emb, Logger: logging.Discard()})
			hits := e.Search(context.Background(), fixedCollection(tc.coll), "go", tc.limit, "")
			if hits == nil || len(hits) != 0 {
				t.Errorf("want non-nil empty result, got %#v", hits)
			}
		})
	}
}

func TestSearch_CandidatesEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := index.NewMemoryClient()
	emb := queryEmbedder()

	syncer, err := index.NewSyncer(model.CandidateSchema(), mem, emb, index.SyncerConfig{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewSyncer: %v", err)
	}
	c := &model.Candidate{
		ID:         "c1",
		Org:        "o1",
		Email:      "c1@example.com",
		Name:       "Ada",
		ResumeText: "Go engineer",
		Skills:     []string{"go"},
	}
	if !syncer.Upsert(ctx, c) {
		t.Fatal("upsert failed")
	}

	e := New(Config{Client: mem, Embedder: emb, Logger: logging.Discard()})
	hits := e.Search(ctx, syncer, "go engineer", 5, "o1")
	if len(hits) != 1 || hits[0].ID != "c1" {
		t.Fatalf("want c1 under o1, got %+v", hits)
	}
	if hits[0].Payload["email"] != "c1@example.com" {
		t.Errorf("payload missing email: %v", hits[0].Payload)
	}
	if hits := e.Search(ctx, syncer, "go engineer", 5, "o2"); len(hits) != 0 {
		t.Errorf("want nothing under o2, got %+v", hits)
	}
}

func TestSearch_Metrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := New(Config{Client: seed(t), Embedder: queryEmbedder(), Logger: logging.Discard(), Metrics: m})
	ctx := context.Background()

	e.Search(ctx, fixedCollection("docs"), "go", 10, "")
	e.Search(ctx, fixedCollection("missing"), "go", 10, "")

	if got := testutil.ToFloat64(m.queriesTotal.WithLabelValues("docs", "hits")); got != 1 {
		t.Errorf("hits counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.queriesTotal.WithLabelValues("missing", "empty")); got != 1 {
		t.Errorf("empty counter = %v, want 1", got)
	}
}
