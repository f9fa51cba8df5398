package index

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MemoryClient is an in-process Client. Dense queries score by cosine
// similarity and sparse queries by dot product. Errors carry the same gRPC
// codes Qdrant returns so retry classification behaves identically.
type MemoryClient struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	spec   CollectionSpec
	points map[string]Point
}

// NewMemoryClient returns an empty in-memory index.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{collections: make(map[string]*memCollection)}
}

// Name returns the dependency label used in readiness responses.
func (m *MemoryClient) Name() string { return "memory-index" }

// Ping always succeeds.
func (m *MemoryClient) Ping(context.Context) error { return nil }

// CollectionExists reports whether the collection exists.
func (m *MemoryClient) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

// CreateCollection creates an empty collection.
func (m *MemoryClient) CreateCollection(_ context.Context, spec CollectionSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[spec.Name]; ok {
		return ErrCollectionExists
	}
	m.collections[spec.Name] = &memCollection{spec: spec, points: make(map[string]Point)}
	return nil
}

// Upsert stores copies of points.
func (m *MemoryClient) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Dense) > 0 && uint64(len(p.Dense)) != c.spec.DenseSize {
			return status.Errorf(codes.InvalidArgument,
				"wrong input: vector dimension error: expected dim: %d, got %d", c.spec.DenseSize, len(p.Dense))
		}
	}
	for _, p := range points {
		c.points[p.ID] = Point{
			ID:      p.ID,
			Payload: copyPayload(p.Payload),
			Dense:   slices.Clone(p.Dense),
			Sparse:  p.Sparse,
		}
	}
	return nil
}

// Delete removes points by id.
func (m *MemoryClient) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

// Retrieve returns stored points in the order of ids, skipping absent ones.
func (m *MemoryClient) Retrieve(_ context.Context, collection string, ids []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		p, ok := c.points[id]
		if !ok {
			continue
		}
		records = append(records, Record{ID: p.ID, Payload: copyPayload(p.Payload), Dense: slices.Clone(p.Dense)})
	}
	return records, nil
}

// Query scores every point carrying the queried vector and returns the top
// Limit, ties broken by id.
func (m *MemoryClient) Query(_ context.Context, q Query) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(q.Collection)
	if err != nil {
		return nil, err
	}

	hits := make([]ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		if q.Filter != nil && fmt.Sprint(p.Payload[q.Filter.Field]) != q.Filter.Value {
			continue
		}
		var score float64
		if len(q.Dense) > 0 {
			if len(p.Dense) == 0 {
				continue
			}
			score = cosine(q.Dense, p.Dense)
		} else {
			if p.Sparse.Empty() {
				continue
			}
			score = sparseDot(q.Sparse.Indices, q.Sparse.Values, p.Sparse.Indices, p.Sparse.Values)
			if score == 0 {
				continue
			}
		}
		hits = append(hits, ScoredPoint{ID: p.ID, Payload: copyPayload(p.Payload), Score: score})
	}

	slices.SortFunc(hits, func(a, b ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if q.Limit >= 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// Close is a no-op.
func (m *MemoryClient) Close() error { return nil }

// Len returns the number of points in collection, or 0 if it does not exist.
func (m *MemoryClient) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.points)
	}
	return 0
}

// DropCollection removes collection and its points. Dropping an absent
// collection is a no-op.
func (m *MemoryClient) DropCollection(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
}

// Point returns a copy of the stored point for id.
func (m *MemoryClient) Point(collection, id string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return Point{}, false
	}
	p, ok := c.points[id]
	if !ok {
		return Point{}, false
	}
	p.Payload = copyPayload(p.Payload)
	p.Dense = slices.Clone(p.Dense)
	return p, true
}

// collection must be called with mu held.
func (m *MemoryClient) collection(name string) (*memCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "collection %s not found", name)
	}
	return c, nil
}

func copyPayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
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

// sparseDot assumes both index lists are sorted ascending.
func sparseDot(ai []uint32, av []float32, bi []uint32, bv []float32) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] == bi[j]:
			sum += float64(av[i]) * float64(bv[j])
			i++
			j++
		case ai[i] < bi[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
