// Package provider selects and constructs the chat model that answers
// document requests. Supported backends: Ollama, OpenAI, Azure OpenAI,
// Google Gemini and Volcengine Ark.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API or any OpenAI-compatible server.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
)

// ProviderOllama configures the Ollama backend.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI configures the OpenAI backend. BaseURL is optional and
// points the client at an OpenAI-compatible server.
type ProviderOpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProviderAzureOpenAI configures the Azure OpenAI backend.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderGemini configures the Gemini backend.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// ProviderArk configures the Ark backend. BaseURL falls back to the SDK
// default region endpoint when empty.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SharedTuning holds generation parameters applied to every backend that
// supports them.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds provider configuration resolved from environment variables
// or explicit caller-supplied values. Only the section matching Backend is
// read.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Ark         ProviderArk
	Tuning      SharedTuning
}

// Validate reports the first missing setting for the selected backend,
// naming the environment variable that supplies it.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		return require("ollama", field{"OLLAMA_HOST", c.Ollama.Host}, field{"OLLAMA_MODEL", c.Ollama.Model})
	case BackendOpenAI:
		return require("openai", field{"OPENAI_API_KEY", c.OpenAI.APIKey}, field{"OPENAI_MODEL", c.OpenAI.Model})
	case BackendAzure:
		return require("azure",
			field{"AZURE_OPENAI_API_KEY", c.AzureOpenAI.APIKey},
			field{"AZURE_OPENAI_ENDPOINT", c.AzureOpenAI.Endpoint},
			field{"AZURE_OPENAI_DEPLOYMENT", c.AzureOpenAI.Deployment},
		)
	case BackendGemini:
		return require("gemini", field{"GOOGLE_API_KEY", c.Gemini.APIKey}, field{"GEMINI_MODEL", c.Gemini.Model})
	case BackendArk:
		return require("ark", field{"ARK_API_KEY", c.Ark.APIKey}, field{"ARK_MODEL", c.Ark.Model})
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: ollama, openai, azure, gemini, ark)", c.Backend)
	}
}

// ModelName returns the model or deployment name the selected backend will
// call. It is reported back to clients alongside every answer.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendGemini:
		return c.Gemini.Model
	case BackendArk:
		return c.Ark.Model
	}
	return ""
}

type field struct {
	env   string
	value string
}

func require(backend string, fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("provider: %s is required for %s backend", f.env, backend)
		}
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment serves an
// o-series or codex reasoning model. Those reject both the temperature and
// max_tokens parameters, so neither is sent.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range []string{"o1", "o3", "o4", "codex"} {
		if d == p || strings.HasPrefix(d, p+"-") {
			return true
		}
	}
	return false
}
