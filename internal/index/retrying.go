package index

import (
	"context"

	"github.com/54b3r/hiresync-go/internal/retry"
)

// retryingClient re-runs every call through a retry policy. Only transient
// failures are retried; see retry.IsTransient.
type retryingClient struct {
	inner  Client
	policy *retry.Policy
}

// WithRetry wraps c so each call is retried under policy. A nil policy
// returns c unchanged.
func WithRetry(c Client, policy *retry.Policy) Client {
	if policy == nil {
		return c
	}
	return &retryingClient{inner: c, policy: policy}
}

func (r *retryingClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	return retry.Value(ctx, r.policy, "index_collection_exists", func(ctx context.Context) (bool, error) {
		return r.inner.CollectionExists(ctx, name)
	})
}

func (r *retryingClient) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	return r.policy.Do(ctx, "index_create_collection", func(ctx context.Context) error {
		return r.inner.CreateCollection(ctx, spec)
	})
}

func (r *retryingClient) Upsert(ctx context.Context, collection string, points []Point) error {
	return r.policy.Do(ctx, "index_upsert", func(ctx context.Context) error {
		return r.inner.Upsert(ctx, collection, points)
	})
}

func (r *retryingClient) Delete(ctx context.Context, collection string, ids []string) error {
	return r.policy.Do(ctx, "index_delete", func(ctx context.Context) error {
		return r.inner.Delete(ctx, collection, ids)
	})
}

func (r *retryingClient) Retrieve(ctx context.Context, collection string, ids []string) ([]Record, error) {
	return retry.Value(ctx, r.policy, "index_retrieve", func(ctx context.Context) ([]Record, error) {
		return r.inner.Retrieve(ctx, collection, ids)
	})
}

func (r *retryingClient) Query(ctx context.Context, q Query) ([]ScoredPoint, error) {
	return retry.Value(ctx, r.policy, "index_query", func(ctx context.Context) ([]ScoredPoint, error) {
		return r.inner.Query(ctx, q)
	})
}

func (r *retryingClient) Close() error { return r.inner.Close() }
