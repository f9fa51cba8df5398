package index

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/54b3r/hiresync-go/internal/embedder"
)

func seededMemory(t *testing.T) *MemoryClient {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryClient()
	if err := m.CreateCollection(ctx, CollectionSpec{Name: "c", DenseSize: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	points := []Point{
		{ID: "a", Payload: map[string]any{"org": "o1"}, Dense: []float32{1, 0},
			Sparse: embedder.SparseVector{Indices: []uint32{1, 5}, Values: []float32{1, 1}}},
		{ID: "b", Payload: map[string]any{"org": "o1"}, Dense: []float32{0.7, 0.7},
			Sparse: embedder.SparseVector{Indices: []uint32{5}, Values: []float32{2}}},
		{ID: "c", Payload: map[string]any{"org": "o2"}, Dense: []float32{0, 1}},
	}
	if err := m.Upsert(ctx, "c", points); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return m
}

func TestMemoryClient_DenseQuery(t *testing.T) {
	t.Parallel()
	m := seededMemory(t)

	hits, err := m.Query(context.Background(), Query{Collection: "c", Dense: []float32{1, 0}, Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 3 || hits[0].ID != "a" || hits[1].ID != "b" || hits[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", hits)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("identical vector should score ~1, got %f", hits[0].Score)
	}
}

func TestMemoryClient_SparseQueryAndFilter(t *testing.T) {
	t.Parallel()
	m := seededMemory(t)

	hits, err := m.Query(context.Background(), Query{
		Collection: "c",
		Sparse:     embedder.SparseVector{Indices: []uint32{5}, Values: []float32{1}},
		Filter:     TenantFilter("o1"),
		Limit:      1,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("want only b, got %+v", hits)
	}
}

func TestMemoryClient_Errors(t *testing.T) {
	t.Parallel()
	m := seededMemory(t)
	ctx := context.Background()

	if err := m.CreateCollection(ctx, CollectionSpec{Name: "c", DenseSize: 2}); !errors.Is(err, ErrCollectionExists) {
		t.Errorf("duplicate create: got %v", err)
	}
	_, err := m.Query(ctx, Query{Collection: "missing", Dense: []float32{1, 0}, Limit: 1})
	if status.Code(err) != codes.NotFound {
		t.Errorf("missing collection: got %v", err)
	}
	err = m.Upsert(ctx, "c", []Point{{ID: "x", Dense: []float32{1, 2, 3}}})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("wrong dims: got %v", err)
	}
}

func TestMemoryClient_RetrieveAndDelete(t *testing.T) {
	t.Parallel()
	m := seededMemory(t)
	ctx := context.Background()

	recs, err := m.Retrieve(ctx, "c", []string{"c", "nope", "a"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "a" {
		t.Fatalf("unexpected records: %+v", recs)
	}

	if err := m.Delete(ctx, "c", []string{"a", "nope"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Len("c") != 2 {
		t.Errorf("want 2 points after delete, got %d", m.Len("c"))
	}
}
