package server

import (
	"context"
	"errors"
	"fmt"
)

// DenseEmbedder is the part of the embedding provider the readiness probe
// needs. *embedder.Provider satisfies it.
type DenseEmbedder interface {
	GenerateDense(ctx context.Context, text string) []float32
	Dimensions() int
}

// EmbedderPinger probes the dense embedding backend by embedding a short
// fixed string. Each probe is one real embedding call, so keep readiness
// polling intervals reasonable when the backend is metered.
type EmbedderPinger struct {
	Embedder DenseEmbedder
}

// Name returns "embedder".
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping fails when the backend returns no vector or one of the wrong size.
// The provider already retried transient failures before giving up.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vec := p.Embedder.GenerateDense(ctx, "readiness probe")
	if len(vec) == 0 {
		return errors.New("embedding backend returned no vector")
	}
	if want := p.Embedder.Dimensions(); want > 0 && len(vec) != want {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(vec), want)
	}
	return nil
}
