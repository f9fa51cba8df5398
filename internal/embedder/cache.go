package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/54b3r/hiresync-go/internal/logging"
)

// cacheKeyPrefix namespaces dense embedding cache entries.
const cacheKeyPrefix = "hiresync:emb:"

// ErrCacheMiss is returned by a [CacheStore] when the key is absent.
var ErrCacheMiss = errors.New("embedder: cache miss")

// CacheStore is the key-value store behind [CachedEmbedder].
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedEmbedder decorates a [DenseEmbedder] with a content-addressed cache.
// Keys are derived from the model name and the text, so switching models
// never serves stale vectors. Cache failures are logged and bypassed.
type CachedEmbedder struct {
	inner   DenseEmbedder
	store   CacheStore
	model   string
	log     *slog.Logger
	metrics *Metrics
}

// NewCachedEmbedder wraps inner with store. model must identify the vectors
// inner produces (model name plus dimensions is a good choice).
func NewCachedEmbedder(inner DenseEmbedder, store CacheStore, model string, log *slog.Logger, m *Metrics) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		store:   store,
		model:   model,
		log:     logging.Component(log, "embedding-cache"),
		metrics: m,
	}
}

// Embed returns cached vectors where available and embeds only the misses,
// in one call to the inner embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
		if vec, ok := c.get(ctx, keys[i]); ok {
			c.metrics.cache("hit")
			out[i] = vec
			continue
		}
		c.metrics.cache("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: inner returned %d vectors for %d texts", len(vecs), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		c.put(ctx, keys[i], vecs[j])
	}
	return out, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("failed to read cached embedding", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.log.Warn("failed to decode cached embedding", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, encodeVector(vec)); err != nil {
		c.log.Warn("failed to cache embedding", slog.String("key", key), slog.Any("error", err))
	}
}

// encodeVector serialises v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached embedding: len=%d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
