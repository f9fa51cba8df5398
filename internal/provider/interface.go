// Package provider selects and constructs the LLM chat model used to extract
// structured candidate fields from resume text.
// Supported backends: Ollama, OpenAI, Azure OpenAI, AWS Bedrock, Google Gemini.
package provider

import (
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Ollama holds settings for BackendOllama.
	Ollama ProviderOllama

	// OpenAI holds settings for BackendOpenAI.
	OpenAI ProviderOpenAI

	// AzureOpenAI holds settings for BackendAzure.
	AzureOpenAI ProviderAzureOpenAI

	// Bedrock holds settings for BackendBedrock.
	Bedrock ProviderBedrock

	// Gemini holds settings for BackendGemini.
	Gemini ProviderGemini

	// Tuning holds generation parameters shared by every backend.
	Tuning SharedTuning
}

// ProviderOllama configures a local Ollama server.
type ProviderOllama struct {
	// Host is the Ollama API endpoint (OLLAMA_HOST).
	Host string
	// Model is the Ollama model name (OLLAMA_MODEL).
	Model string
}

// ProviderOpenAI configures the OpenAI API.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key (OPENAI_API_KEY).
	APIKey string
	// Model is the model name (OPENAI_MODEL).
	Model string
}

// ProviderAzureOpenAI configures Azure OpenAI Service.
type ProviderAzureOpenAI struct {
	// APIKey is the resource key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource endpoint (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderBedrock configures AWS Bedrock. Credentials come from the AWS SDK
// chain, not from this struct.
type ProviderBedrock struct {
	// AWSRegion is the AWS region (AWS_REGION).
	AWSRegion string
	// ModelID is the Bedrock model identifier (BEDROCK_MODEL_ID).
	ModelID string
}

// ProviderGemini configures Google Gemini.
type ProviderGemini struct {
	// APIKey is the Google API key (GOOGLE_API_KEY).
	APIKey string
	// Model is the Gemini model name (GEMINI_MODEL).
	Model string
}

// SharedTuning holds generation parameters.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0-1.0). Extraction wants
	// low values.
	Temperature float32
}

// setting is one required value of a backend and the variable that supplies it.
type setting struct {
	env   string
	value string
}

// required lists the settings the selected backend cannot run without.
func (c *Config) required() ([]setting, bool) {
	switch c.Backend {
	case BackendOllama:
		return []setting{{"OLLAMA_MODEL", c.Ollama.Model}}, true
	case BackendOpenAI:
		return []setting{{"OPENAI_API_KEY", c.OpenAI.APIKey}, {"OPENAI_MODEL", c.OpenAI.Model}}, true
	case BackendAzure:
		az := c.AzureOpenAI
		return []setting{
			{"AZURE_OPENAI_API_KEY", az.APIKey},
			{"AZURE_OPENAI_ENDPOINT", az.Endpoint},
			{"AZURE_OPENAI_DEPLOYMENT", az.Deployment},
		}, true
	case BackendBedrock:
		return []setting{{"BEDROCK_MODEL_ID", c.Bedrock.ModelID}, {"AWS_REGION", c.Bedrock.AWSRegion}}, true
	case BackendGemini:
		return []setting{{"GOOGLE_API_KEY", c.Gemini.APIKey}, {"GEMINI_MODEL", c.Gemini.Model}}, true
	}
	return nil, false
}

// Validate reports the first missing setting for the selected backend,
// naming the environment variable that supplies it.
func (c *Config) Validate() error {
	settings, ok := c.required()
	if !ok {
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, bedrock, gemini)", c.Backend)
	}
	for _, s := range settings {
		if s.value == "" {
			return fmt.Errorf("provider: %s is required for %s backend", s.env, c.Backend)
		}
	}
	if c.Tuning.MaxTokens <= 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must be positive, got %d", c.Tuning.MaxTokens)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 1 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be within [0, 1], got %g", c.Tuning.Temperature)
	}
	return nil
}
