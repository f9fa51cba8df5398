// Package index keeps a vector index (Qdrant) consistent with the primary
// record store. Every indexed entity type declares a [Schema]; a [Syncer]
// turns entities into points carrying a payload, a dense vector and a sparse
// vector, and writes or removes them whenever the store reports a change.
//
// The [Client] interface is the narrow surface the sync, search and
// similarity engines need from the index service. [QdrantClient] talks to a
// real Qdrant cluster over gRPC; [MemoryClient] is an in-process stand-in
// for local runs and tests. [WithRetry] wraps any Client in a retry policy.
package index

import (
	"context"
	"errors"

	"github.com/54b3r/hiresync-go/internal/embedder"
)

// Named vectors and reserved payload keys shared by every collection.
const (
	// DenseVectorName is the named dense vector of every point.
	DenseVectorName = "text-dense"
	// SparseVectorName is the named sparse vector of every point.
	SparseVectorName = "text-sparse"

	// IDField carries the entity id in every payload.
	IDField = "_id"
	// CollectionField carries the base collection name in every payload.
	CollectionField = "_collection"
	// TenantField carries the owning organization id.
	TenantField = "org"
)

// ErrCollectionExists is returned by [Client.CreateCollection] when another
// writer created the collection first. Callers treat it as success.
var ErrCollectionExists = errors.New("index: collection already exists")

// Point is one entity as stored in the index.
type Point struct {
	// ID is the entity id. Clients map it to whatever id format the
	// backend requires and return it unchanged.
	ID string
	// Payload holds normalised field values (see [Schema.Payload]).
	Payload map[string]any
	// Dense is the semantic embedding. May be empty.
	Dense []float32
	// Sparse is the lexical vector. May be empty.
	Sparse embedder.SparseVector
}

// Record is a point read back by id.
type Record struct {
	ID      string
	Payload map[string]any
	Dense   []float32
}

// ScoredPoint is a query hit.
type ScoredPoint struct {
	ID      string
	Payload map[string]any
	Score   float64
}

// Filter restricts a query to points whose payload Field equals Value.
type Filter struct {
	Field string
	Value string
}

// TenantFilter returns the filter that isolates tenant, or nil for "".
func TenantFilter(tenant string) *Filter {
	if tenant == "" {
		return nil
	}
	return &Filter{Field: TenantField, Value: tenant}
}

// Query is a nearest-neighbour search against one named vector. Exactly one
// of Dense or Sparse is used; Dense wins when both are set.
type Query struct {
	Collection string
	Dense      []float32
	Sparse     embedder.SparseVector
	Filter     *Filter
	Limit      int
}

// CollectionSpec describes a collection to create: a cosine dense vector of
// DenseSize dimensions (omitted when zero) and an in-memory sparse vector
// with IDF weighting.
type CollectionSpec struct {
	Name      string
	DenseSize uint64
}

// Client is the index service. Implementations must be safe for concurrent use.
type Client interface {
	// CollectionExists reports whether name exists.
	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection creates the collection, or returns ErrCollectionExists.
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	// Upsert writes points, replacing any existing point with the same id.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Delete removes points by entity id. Absent ids are not an error.
	Delete(ctx context.Context, collection string, ids []string) error
	// Retrieve returns the stored points for ids, skipping absent ones.
	Retrieve(ctx context.Context, collection string, ids []string) ([]Record, error)
	// Query returns the best matches for q, highest score first.
	Query(ctx context.Context, q Query) ([]ScoredPoint, error)
	// Close releases the connection.
	Close() error
}
