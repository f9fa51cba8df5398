// Package audit logs one structured entry per CLI command invocation: the
// command, the config file it resolved, and the environment that drives the
// stores, index, embedders and extractor.
//
// Secrets are logged as presence/absence only, never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// entry is an environment variable included in the audit log.
type entry struct {
	key    string
	secret bool
}

// entries is the ordered list of variables logged at command start.
var entries = []entry{
	{"HIRESYNC_DB", false},
	{"HIRESYNC_API_KEY", true},
	{"HIRESYNC_RATE_LIMIT", false},
	{"HIRESYNC_RATE_BURST", false},
	{"INDEX_BACKEND", false},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_TLS", false},
	{"QDRANT_API_KEY", true},
	{"INDEX_WORKERS", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_DIMENSIONS", false},
	{"EMBEDDING_ENDPOINT", false},
	{"EMBEDDING_API_KEY", true},
	{"EMBEDDING_CACHE_ADDR", false},
	{"EMBEDDING_CACHE_PASSWORD", true},
	{"EMBEDDING_CACHE_TTL", false},
	{"SPARSE_ENCODER", false},
	{"RETRY_MAX_ATTEMPTS", false},
	{"RETRY_BASE_DELAY", false},
	{"MODEL_PROVIDER", false},
	{"EXTRACT_MAX_CONTEXT_TOKENS", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"AWS_REGION", false},
	{"BEDROCK_MODEL_ID", false},
	{"AWS_SECRET_ACCESS_KEY", true},
	{"AWS_SESSION_TOKEN", true},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
}

// secretKeys indexes the secret entries.
var secretKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, e := range entries {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart emits the audit entry for command.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(entries)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range entries {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the value
// (or "unset") for everything else.
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return value
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath returns the config path with the home directory shown
// as "~", or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
