package embedder

import (
	"fmt"
	"os"
	"strconv"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is ollama, openai or azure.
	Backend string
	// Model is the embedding model (deployment name on Azure).
	Model string
	// Endpoint is the provider base URL.
	Endpoint string
	// APIKey authenticates against OpenAI or Azure. Unused for Ollama.
	APIKey string
	// APIVersion is the Azure api-version parameter.
	APIVersion string
	// Dimensions is the enforced vector length; 0 learns it from the first response.
	Dimensions int
	// BatchSize caps texts per provider request.
	BatchSize int
}

// ConfigFromEnv resolves the embedding configuration using cascading
// defaults that inherit from the chat provider configuration when
// embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER: if unset, inherits MODEL_PROVIDER when that is an
//     embedding-capable backend, else ollama
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL: overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY: overrides the inherited API key
//  5. EMBEDDING_ENDPOINT: overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS: fixes the vector length (openai/azure default 1536)
//  7. EMBEDDING_BATCH_SIZE: texts per request (default 64)
func ConfigFromEnv() (Config, error) {
	backend := getEnv("EMBEDDING_PROVIDER")
	if backend == "" {
		switch p := getEnvOrDefault("MODEL_PROVIDER", "ollama"); p {
		case "ollama", "openai", "azure":
			backend = p
		default:
			backend = "ollama"
		}
	}

	cfg := Config{
		Backend:   backend,
		BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", DefaultBatchSize),
	}

	switch backend {
	case "ollama":
		cfg.Endpoint = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("OLLAMA_HOST"), "http://localhost:11434")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", 0)

	case "openai":
		cfg.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		cfg.Endpoint = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), "https://api.openai.com/v1")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", 1536)

	case "azure":
		cfg.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("AZURE_OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("AZURE_OPENAI_ENDPOINT"))
		if endpoint == "" {
			return Config{}, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		cfg.Endpoint = endpoint + "/openai"
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", 1536)

	default:
		return Config{}, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", backend)
	}
	return cfg, nil
}

// New builds a Client for cfg.
func New(cfg Config) (*Client, error) {
	switch cfg.Backend {
	case "ollama":
		return NewClient(cfg.Backend, NewOllamaEmbedder(&OllamaConfig{
			Host:  cfg.Endpoint,
			Model: cfg.Model,
		}), cfg.Dimensions, cfg.BatchSize)
	case "openai", "azure":
		return NewClient(cfg.Backend, NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      cfg.Backend == "azure",
			APIVersion: cfg.APIVersion,
		}), cfg.Dimensions, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Backend)
	}
}

// NewFromEnv resolves the configuration from the environment and builds a Client.
func NewFromEnv() (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
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

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
