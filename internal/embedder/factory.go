package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/hiresync-go/internal/retry"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the default dense vector size for the given
// backend name. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Backend returns the configured dense embedding backend name
// (EMBEDDING_PROVIDER, default ollama).
func Backend() string {
	return strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", "ollama"))
}

// NewDenseFromEnv constructs the dense embedder selected by
// EMBEDDING_PROVIDER. "none" returns a nil embedder and no error: the
// provider then indexes sparse vectors only.
//
// Environment variables:
//
//	EMBEDDING_PROVIDER   = ollama | openai | azure | none (default: ollama)
//	EMBEDDING_MODEL      overrides the backend's default model
//	EMBEDDING_API_KEY    overrides OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//	EMBEDDING_ENDPOINT   overrides OLLAMA_HOST / AZURE_OPENAI_ENDPOINT / the OpenAI base URL
//	EMBEDDING_DIMENSIONS overrides the default dimensions (ollama: 768, openai/azure: 1536)
func NewDenseFromEnv() (DenseEmbedder, error) {
	switch backend := Backend(); backend {
	case "none":
		return nil, nil

	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		}), nil

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: ollama, openai, azure, none", backend)
	}
}

// NewProviderFromEnv assembles the full [Provider]: the dense backend,
// optionally behind the Redis cache (EMBEDDING_CACHE_ADDR), and the BM25
// sparse encoder (SPARSE_ENCODER=bm25|none, default bm25). The returned
// close function releases the cache connection and is never nil.
func NewProviderFromEnv(log *slog.Logger, m *Metrics, policy *retry.Policy) (*Provider, func(), error) {
	closeFn := func() {}

	dense, err := NewDenseFromEnv()
	if err != nil {
		return nil, closeFn, err
	}
	backend := Backend()
	dims := DefaultDimensions(backend)

	if addr := getEnv("EMBEDDING_CACHE_ADDR"); addr != "" && dense != nil {
		cache, err := NewRedisCache(RedisConfig{
			Addrs:    strings.Split(addr, ","),
			Password: getEnv("EMBEDDING_CACHE_PASSWORD"),
			TTL:      getEnvDuration("EMBEDDING_CACHE_TTL", 0),
		})
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = cache.Close
		model := fmt.Sprintf("%s/%s/%d", backend, getEnv("EMBEDDING_MODEL"), dims)
		dense = NewCachedEmbedder(dense, cache, model, log, m)
		log.Info("embedding cache enabled", slog.String("addr", addr))
	}

	var sparse SparseEncoder
	switch mode := strings.ToLower(getEnvOrDefault("SPARSE_ENCODER", "bm25")); mode {
	case "bm25":
		sparse = NewBM25Encoder(nil)
	case "none":
	default:
		closeFn()
		return nil, func() {}, fmt.Errorf("embedder: unknown sparse encoder %q, valid values: bm25, none", mode)
	}

	if dense == nil && sparse == nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("embedder: both dense and sparse embedding are disabled")
	}

	return NewProvider(ProviderConfig{
		Dense:      dense,
		Sparse:     sparse,
		Dimensions: dims,
		Backend:    backend,
		Logger:     log,
		Metrics:    m,
		Retry:      policy,
	}), closeFn, nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration parses a Go duration string, returning fallback on error.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
