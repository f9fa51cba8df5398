// Package embedder turns entity text into the two vector representations the
// index stores for every point: a dense semantic embedding produced by a
// model backend (OpenAI, Azure OpenAI, Ollama) and a sparse lexical vector
// produced locally by a hashed BM25 term encoder.
//
// [Provider] is the facade the sync and search engines use. It never returns
// an error: a failed or empty embedding is logged and reported as an empty
// vector, and callers decide what an empty vector means for them.
package embedder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/retry"
)

// SparseVector is a sparse representation of a text: parallel slices of
// dimension indices and weights. Indices are unique and sorted ascending.
type SparseVector struct {
	// Indices are the non-zero dimensions.
	Indices []uint32 `json:"indices"`
	// Values are the weights for Indices, aligned by position.
	Values []float32 `json:"values"`
}

// Empty reports whether v carries no dimensions.
func (v SparseVector) Empty() bool {
	return len(v.Indices) == 0
}

// DenseEmbedder converts a batch of texts into dense embeddings.
// The returned slice is parallel to the input slice.
// Implementations must be safe to call from multiple goroutines.
type DenseEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SparseEncoder converts one text into a sparse vector.
// Implementations must be safe to call from multiple goroutines.
type SparseEncoder interface {
	Encode(ctx context.Context, text string) (SparseVector, error)
}

// Provider combines a dense embedder and a sparse encoder behind a
// degrade-never-fail API.
type Provider struct {
	// dense produces semantic embeddings. May be nil (dense disabled).
	dense DenseEmbedder
	// sparse produces lexical vectors. May be nil (sparse disabled).
	sparse SparseEncoder
	// dims is the expected dense vector length, used to size collections.
	dims int
	// backend labels metrics and logs (e.g. "openai").
	backend string
	// log receives one line per degraded call.
	log *slog.Logger
	// metrics records per-call outcomes. May be nil.
	metrics *Metrics
	// retry wraps dense backend calls. Nil means a single attempt.
	retry *retry.Policy
}

// ProviderConfig holds the collaborators for [NewProvider].
type ProviderConfig struct {
	// Dense is the dense embedding backend. Nil disables dense vectors.
	Dense DenseEmbedder
	// Sparse is the sparse encoder. Nil disables sparse vectors.
	Sparse SparseEncoder
	// Dimensions is the dense vector size the backend produces.
	Dimensions int
	// Backend is the dense backend name used in metric labels.
	Backend string
	// Logger is the structured logger. If nil, slog.Default is used.
	Logger *slog.Logger
	// Metrics records embedding outcomes. May be nil.
	Metrics *Metrics
	// Retry wraps dense backend calls. Nil means a single attempt.
	Retry *retry.Policy
}

// NewProvider constructs a Provider from cfg.
func NewProvider(cfg ProviderConfig) *Provider {
	backend := cfg.Backend
	if backend == "" {
		backend = "custom"
	}
	return &Provider{
		dense:   cfg.Dense,
		sparse:  cfg.Sparse,
		dims:    cfg.Dimensions,
		backend: backend,
		log:     logging.Component(cfg.Logger, "embedder"),
		metrics: cfg.Metrics,
		retry:   cfg.Retry,
	}
}

// Dimensions returns the dense vector size collections must be created with.
func (p *Provider) Dimensions() int {
	return p.dims
}

// GenerateDense returns the dense embedding of text, or nil when text is
// blank, no dense backend is configured, or the backend fails.
func (p *Provider) GenerateDense(ctx context.Context, text string) []float32 {
	if p.dense == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	start := time.Now()
	vecs, err := retry.Value(ctx, p.retry, "embed_dense", func(ctx context.Context) ([][]float32, error) {
		return p.dense.Embed(ctx, []string{text})
	})
	p.metrics.observe(p.backend, "dense", err, time.Since(start))
	if err != nil {
		p.log.Error("dense embedding failed",
			slog.String("backend", p.backend),
			slog.Int("text_len", len(text)),
			slog.Any("error", err),
		)
		return nil
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		p.log.Warn("dense embedding returned no vector", slog.String("backend", p.backend))
		return nil
	}
	return vecs[0]
}

// GenerateSparse returns the sparse vector of text, or an empty vector when
// text is blank, no encoder is configured, or the encoder fails.
func (p *Provider) GenerateSparse(ctx context.Context, text string) SparseVector {
	if p.sparse == nil || strings.TrimSpace(text) == "" {
		return SparseVector{}
	}

	start := time.Now()
	vec, err := p.sparse.Encode(ctx, text)
	p.metrics.observe("bm25", "sparse", err, time.Since(start))
	if err != nil {
		p.log.Error("sparse embedding failed",
			slog.Int("text_len", len(text)),
			slog.Any("error", err),
		)
		return SparseVector{}
	}
	if len(vec.Indices) != len(vec.Values) {
		p.log.Error("sparse embedding has misaligned indices and values",
			slog.Int("indices", len(vec.Indices)),
			slog.Int("values", len(vec.Values)),
		)
		return SparseVector{}
	}
	return vec
}
