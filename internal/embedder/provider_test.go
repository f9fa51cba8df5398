package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/hiresync-go/internal/logging"
)

// fakeDense is a test double for DenseEmbedder.
type fakeDense struct {
	mu sync.Mutex
	// vec is returned for every text when err is nil.
	vec []float32
	// err is returned by Embed when non-nil.
	err error
	// calls records every batch passed to Embed.
	calls [][]string
}

func (f *fakeDense) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeSparse is a test double for SparseEncoder.
type fakeSparse struct {
	vec SparseVector
	err error
}

func (f *fakeSparse) Encode(context.Context, string) (SparseVector, error) {
	return f.vec, f.err
}

func TestProvider_GenerateDense(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	dense := &fakeDense{vec: []float32{0.1, 0.2, 0.3}}
	p := NewProvider(ProviderConfig{Dense: dense, Dimensions: 3, Backend: "fake", Logger: logging.Discard(), Metrics: m})

	got := p.GenerateDense(context.Background(), "go engineer")
	if len(got) != 3 {
		t.Fatalf("len: got %d, want 3", len(got))
	}
	if p.Dimensions() != 3 {
		t.Errorf("Dimensions: got %d, want 3", p.Dimensions())
	}
	if c := testutil.ToFloat64(m.requestsTotal.WithLabelValues("fake", "dense", "ok")); c != 1 {
		t.Errorf("requests_total ok: got %v, want 1", c)
	}
}

func TestProvider_DegradedModeNeverFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dense  DenseEmbedder
		sparse SparseEncoder
		text   string
	}{
		{"blank text", &fakeDense{vec: []float32{1}}, &fakeSparse{vec: SparseVector{Indices: []uint32{1}, Values: []float32{1}}}, "   "},
		{"backend errors", &fakeDense{err: errors.New("boom")}, &fakeSparse{err: errors.New("boom")}, "text"},
		{"nothing configured", nil, nil, "text"},
		{"empty vectors", &fakeDense{vec: nil}, &fakeSparse{}, "text"},
		{"misaligned sparse", nil, &fakeSparse{vec: SparseVector{Indices: []uint32{1, 2}, Values: []float32{1}}}, "text"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := NewProvider(ProviderConfig{Dense: tc.dense, Sparse: tc.sparse, Logger: logging.Discard()})
			if got := p.GenerateDense(context.Background(), tc.text); len(got) != 0 {
				t.Errorf("dense: expected empty, got %v", got)
			}
			if got := p.GenerateSparse(context.Background(), tc.text); !got.Empty() {
				t.Errorf("sparse: expected empty, got %+v", got)
			}
		})
	}
}

func TestProvider_GenerateSparseWithBM25(t *testing.T) {
	t.Parallel()

	p := NewProvider(ProviderConfig{Sparse: NewBM25Encoder(nil), Logger: logging.Discard()})
	got := p.GenerateSparse(context.Background(), "python django")
	if len(got.Indices) != 2 || len(got.Values) != 2 {
		t.Fatalf("expected 2 dimensions, got %+v", got)
	}
}
