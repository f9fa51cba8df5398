package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the embedding backend.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check of the embedding configuration. It returns
// an error when the configuration is clearly broken (missing credentials,
// non-positive dimensions) and logs a warning when EMBEDDING_MODEL looks
// like a chat model. Call it before constructing the provider so operators
// get a clear error at startup rather than a stream of empty vectors.
func Validate(log *slog.Logger) error {
	backend := Backend()

	switch backend {
	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=openai but no API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=azure but no API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=azure but no endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	case "none":
		if strings.ToLower(os.Getenv("SPARSE_ENCODER")) == "none" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=none and SPARSE_ENCODER=none leave nothing to index")
		}
		log.Warn("embedder: dense embeddings disabled, similarity scoring will return no results",
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure)"),
		)
	}

	if raw := os.Getenv("EMBEDDING_DIMENSIONS"); raw != "" {
		if getEnvInt("EMBEDDING_DIMENSIONS", 0) <= 0 {
			return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must be a positive integer, got %q", raw)
		}
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
