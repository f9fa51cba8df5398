package provider

import (
	"context"
	"strings"
	"testing"
)

// validConfigs holds one complete configuration per backend.
func validConfigs() map[Backend]Config {
	tuning := SharedTuning{MaxTokens: DefaultMaxTokens}
	return map[Backend]Config{
		BackendOllama: {Backend: BackendOllama, Tuning: tuning,
			Ollama: ProviderOllama{Host: "http://localhost:11434", Model: "llama3"}},
		BackendOpenAI: {Backend: BackendOpenAI, Tuning: tuning,
			OpenAI: ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"}},
		BackendAzure: {Backend: BackendAzure, Tuning: tuning,
			AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Endpoint: "https://res.openai.azure.com", Deployment: "gpt-4.1"}},
		BackendBedrock: {Backend: BackendBedrock, Tuning: tuning,
			Bedrock: ProviderBedrock{AWSRegion: "eu-west-1", ModelID: "anthropic.claude-3-haiku"}},
		BackendGemini: {Backend: BackendGemini, Tuning: tuning,
			Gemini: ProviderGemini{APIKey: "AIza-test", Model: "gemini-1.5-flash"}},
	}
}

func TestValidate_CompleteConfigs(t *testing.T) {
	t.Parallel()
	for backend, cfg := range validConfigs() {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: unexpected error: %v", backend, err)
		}
	}
}

func TestValidate_NamesMissingVariable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend Backend
		clear   func(*Config)
		wantEnv string
	}{
		{BackendOllama, func(c *Config) { c.Ollama.Model = "" }, "OLLAMA_MODEL"},
		{BackendOpenAI, func(c *Config) { c.OpenAI.APIKey = "" }, "OPENAI_API_KEY"},
		{BackendOpenAI, func(c *Config) { c.OpenAI.Model = "" }, "OPENAI_MODEL"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.APIKey = "" }, "AZURE_OPENAI_API_KEY"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.Endpoint = "" }, "AZURE_OPENAI_ENDPOINT"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.Deployment = "" }, "AZURE_OPENAI_DEPLOYMENT"},
		{BackendBedrock, func(c *Config) { c.Bedrock.ModelID = "" }, "BEDROCK_MODEL_ID"},
		{BackendBedrock, func(c *Config) { c.Bedrock.AWSRegion = "" }, "AWS_REGION"},
		{BackendGemini, func(c *Config) { c.Gemini.APIKey = "" }, "GOOGLE_API_KEY"},
		{BackendGemini, func(c *Config) { c.Gemini.Model = "" }, "GEMINI_MODEL"},
		{BackendOpenAI, func(c *Config) { c.Tuning.MaxTokens = 0 }, "MODEL_MAX_TOKENS"},
		{BackendGemini, func(c *Config) { c.Tuning.Temperature = 1.5 }, "MODEL_TEMPERATURE"},
	}
	for _, tc := range tests {
		t.Run(string(tc.backend)+"/"+tc.wantEnv, func(t *testing.T) {
			t.Parallel()
			cfg := validConfigs()[tc.backend]
			tc.clear(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantEnv) {
				t.Fatalf("Validate() = %v, want error naming %s", err, tc.wantEnv)
			}
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), &Config{Backend: "watsonx", Tuning: SharedTuning{MaxTokens: 1}})
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("New() = %v, want unknown backend error", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "AIza-env")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("MODEL_MAX_TOKENS", "not-a-number")
	t.Setenv("MODEL_TEMPERATURE", "0.2")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendGemini {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.Gemini.APIKey != "AIza-env" || cfg.Gemini.Model != "gemini-1.5-flash" {
		t.Errorf("Gemini = %+v", cfg.Gemini)
	}
	if cfg.Tuning.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default %d for malformed value", cfg.Tuning.MaxTokens, DefaultMaxTokens)
	}
	if cfg.Tuning.Temperature < 0.19 || cfg.Tuning.Temperature > 0.21 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Tuning.Temperature)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	reasoning := []string{"o1", "o1-mini", "o3-pro", "o4-mini", "O3-Mini", "codex-mini"}
	standard := []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-35-turbo", "gpt-5.2-codex", "resume-extractor", ""}

	for _, d := range reasoning {
		if !isAzureReasoningModel(d) {
			t.Errorf("isAzureReasoningModel(%q) = false, want true", d)
		}
	}
	for _, d := range standard {
		if isAzureReasoningModel(d) {
			t.Errorf("isAzureReasoningModel(%q) = true, want false", d)
		}
	}
}
