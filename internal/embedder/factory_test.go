package embedder

import (
	"strings"
	"testing"

	"github.com/54b3r/hiresync-go/internal/logging"
)

// clearEmbeddingEnv blanks every variable the factory reads.
func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT",
		"EMBEDDING_DIMENSIONS", "EMBEDDING_CACHE_ADDR", "SPARSE_ENCODER",
		"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultDimensions(t *testing.T) {
	clearEmbeddingEnv(t)

	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama: got %d, want 768", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai: got %d, want 1536", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "384")
	if got := DefaultDimensions("ollama"); got != 384 {
		t.Errorf("override: got %d, want 384", got)
	}
}

func TestNewDenseFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantNil bool
		wantErr string
	}{
		{name: "default ollama", env: map[string]string{}},
		{name: "none", env: map[string]string{"EMBEDDING_PROVIDER": "none"}, wantNil: true},
		{name: "openai without key", env: map[string]string{"EMBEDDING_PROVIDER": "openai"}, wantErr: "OPENAI_API_KEY"},
		{name: "openai", env: map[string]string{"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk"}},
		{name: "azure without endpoint", env: map[string]string{"EMBEDDING_PROVIDER": "azure", "EMBEDDING_API_KEY": "k"}, wantErr: "AZURE_OPENAI_ENDPOINT"},
		{name: "unknown", env: map[string]string{"EMBEDDING_PROVIDER": "bedrock"}, wantErr: "unknown backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			emb, err := NewDenseFromEnv()
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error: got %v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (emb == nil) != tc.wantNil {
				t.Errorf("nil embedder: got %v, want %v", emb == nil, tc.wantNil)
			}
		})
	}
}

func TestNewProviderFromEnv_SparseOnly(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "none")

	p, closeFn, err := NewProviderFromEnv(logging.Discard(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	if p.dense != nil {
		t.Error("dense embedder should be disabled")
	}
	if p.sparse == nil {
		t.Error("sparse encoder should default to bm25")
	}
}

func TestNewProviderFromEnv_NothingEnabled(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "none")
	t.Setenv("SPARSE_ENCODER", "none")

	if _, _, err := NewProviderFromEnv(logging.Discard(), nil, nil); err == nil {
		t.Error("expected error when both encoders are disabled")
	}
}

func TestValidate(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	if err := Validate(logging.Discard()); err == nil {
		t.Error("expected missing key error")
	}

	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("EMBEDDING_DIMENSIONS", "-3")
	if err := Validate(logging.Discard()); err == nil {
		t.Error("expected dimensions error")
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "1536")
	if err := Validate(logging.Discard()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	if !looksLikeChatModel("gpt-4o") {
		t.Error("gpt-4o is a chat model")
	}
	if looksLikeChatModel("nomic-embed-text") {
		t.Error("nomic-embed-text is an embedding model")
	}
}
