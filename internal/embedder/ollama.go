package embedder

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// OllamaEmbedder calls the Ollama /api/embed endpoint. It is safe for
// concurrent use. No API key is required; Ollama runs locally.
type OllamaEmbedder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Timeout bounds each HTTP call (default 60s).
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "ollama embedder"
	var result ollamaEmbedResponse
	status, err := postJSON(ctx, e.client, e.host+"/api/embed", nil, ollamaEmbedRequest{Model: e.model, Input: texts}, &result)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbeddingService, op, err)
	}
	if status < 200 || status >= 300 {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, apperr.New(apperr.KindEmbeddingService, op, "HTTP %d: %s", status, msg)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, apperr.New(apperr.KindEmbeddingService, op, "expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// HealthCheck lists local models via GET /api/tags, which costs no inference.
func (e *OllamaEmbedder) HealthCheck(ctx context.Context) error {
	return getOK(ctx, e.client, e.host+"/api/tags", nil)
}
