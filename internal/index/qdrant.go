package index

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantClient implements Client against a Qdrant cluster.
type QdrantClient struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
}

// NewQdrantClient dials Qdrant. The connection is lazy; use Ping to verify it.
func NewQdrantClient(cfg *QdrantConfig) (*QdrantClient, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return &QdrantClient{client: client}, nil
}

// Name returns the dependency label used in readiness responses.
func (c *QdrantClient) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (c *QdrantClient) Ping(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CollectionExists reports whether the collection exists.
func (c *QdrantClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("qdrant: failed to check collection %q: %w", name, err)
	}
	return exists, nil
}

// CreateCollection creates a collection with the named dense vector (cosine)
// and the named sparse vector (in-memory index, IDF modifier).
func (c *QdrantClient) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	onDisk := false
	req := &qdrant.CreateCollection{
		CollectionName: spec.Name,
		SparseVectorsConfig: &qdrant.SparseVectorConfig{
			Map: map[string]*qdrant.SparseVectorParams{
				SparseVectorName: {
					Index:    &qdrant.SparseIndexConfig{OnDisk: &onDisk},
					Modifier: qdrant.Modifier_Idf.Enum(),
				},
			},
		},
	}
	if spec.DenseSize > 0 {
		req.VectorsConfig = &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_ParamsMap{
				ParamsMap: &qdrant.VectorParamsMap{
					Map: map[string]*qdrant.VectorParams{
						DenseVectorName: {Size: spec.DenseSize, Distance: qdrant.Distance_Cosine},
					},
				},
			},
		}
	}

	if err := c.client.CreateCollection(ctx, req); err != nil {
		if isAlreadyExists(err) {
			return ErrCollectionExists
		}
		return fmt.Errorf("qdrant: failed to create collection %q: %w", spec.Name, err)
	}
	return nil
}

// Upsert writes points and waits for the write to be applied.
func (c *QdrantClient) Upsert(ctx context.Context, collection string, points []Point) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		vectors := make(map[string]*qdrant.Vector, 2)
		if len(p.Dense) > 0 {
			vectors[DenseVectorName] = &qdrant.Vector{
				Vector: &qdrant.Vector_Dense{Dense: &qdrant.DenseVector{Data: p.Dense}},
			}
		}
		if !p.Sparse.Empty() {
			vectors[SparseVectorName] = &qdrant.Vector{
				Vector: &qdrant.Vector_Sparse{Sparse: &qdrant.SparseVector{
					Indices: p.Sparse.Indices,
					Values:  p.Sparse.Values,
				}},
			}
		}
		structs = append(structs, &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(PointID(p.ID)),
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{Vectors: &qdrant.NamedVectors{Vectors: vectors}},
			},
			Payload: toValueMap(p.Payload),
		})
	}

	wait := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", collection, err)
	}
	return nil
}

// Delete removes points by entity id.
func (c *QdrantClient) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wait := true
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete from %q failed: %w", collection, err)
	}
	return nil
}

// Retrieve fetches points with their payload and dense vector.
func (c *QdrantClient) Retrieve(ctx context.Context, collection string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	points, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors: &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Include{
				Include: &qdrant.VectorsSelector{Names: []string{DenseVectorName}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: retrieve from %q failed: %w", collection, err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		payload := fromValueMap(p.GetPayload())
		records = append(records, Record{
			ID:      entityID(payload, p.GetId()),
			Payload: payload,
			Dense:   denseFromOutput(p.GetVectors()),
		})
	}
	return records, nil
}

// Query runs a nearest-neighbour search against the dense or sparse vector.
func (c *QdrantClient) Query(ctx context.Context, q Query) ([]ScoredPoint, error) {
	limit := uint64(q.Limit)
	req := &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	using := DenseVectorName
	if len(q.Dense) > 0 {
		req.Query = qdrant.NewQueryDense(q.Dense)
	} else {
		using = SparseVectorName
		req.Query = qdrant.NewQuerySparse(q.Sparse.Indices, q.Sparse.Values)
	}
	req.Using = &using
	if q.Filter != nil {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(q.Filter.Field, q.Filter.Value)},
		}
	}

	results, err := c.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: query %q on %q failed: %w", using, q.Collection, err)
	}

	hits := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		payload := fromValueMap(r.GetPayload())
		hits = append(hits, ScoredPoint{
			ID:      entityID(payload, r.GetId()),
			Payload: payload,
			Score:   float64(r.GetScore()),
		})
	}
	return hits, nil
}

// Close closes the underlying gRPC connection.
func (c *QdrantClient) Close() error {
	return c.client.Close()
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qdrant.NewIDUUID(PointID(id)))
	}
	return out
}

// entityID prefers the id recorded in the payload, falling back to the raw
// point id for points written by other tools.
func entityID(payload map[string]any, id *qdrant.PointId) string {
	if s, ok := payload[IDField].(string); ok && s != "" {
		return s
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

func denseFromOutput(v *qdrant.VectorsOutput) []float32 {
	if v == nil {
		return nil
	}
	out := v.GetVector()
	if named := v.GetVectors(); named != nil {
		out = named.GetVectors()[DenseVectorName]
	}
	if out == nil {
		return nil
	}
	if d := out.GetDense().GetData(); len(d) > 0 {
		return d
	}
	// Older servers only fill the deprecated flat field.
	return out.GetData()
}

func isAlreadyExists(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// toValueMap converts a normalised payload to Qdrant values. It builds the
// protobuf values directly so unexpected kinds degrade to null instead of
// panicking.
func toValueMap(payload map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) *qdrant.Value {
	switch x := normalize(v).(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: x}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: x}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: x}}
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			break
		}
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: x}}
	case []any:
		values := make([]*qdrant.Value, 0, len(x))
		for _, e := range x {
			values = append(values, toValue(e))
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	case map[string]any:
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: toValueMap(x)}}}
	}
	return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}
}

func fromValueMap(m map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_ListValue:
		values := k.ListValue.GetValues()
		out := make([]any, 0, len(values))
		for _, e := range values {
			out = append(out, fromValue(e))
		}
		return out
	case *qdrant.Value_StructValue:
		return fromValueMap(k.StructValue.GetFields())
	}
	return nil
}
