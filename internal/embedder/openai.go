// Package embedder turns text into dense vectors. Provider implementations
// talk to OpenAI, Azure OpenAI and Ollama over plain HTTP; Client layers
// batching and dimension enforcement on top of any of them.
package embedder

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// OpenAIEmbedder calls the OpenAI (or Azure OpenAI) embeddings REST API.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1" or an Azure endpoint).
	baseURL string
	// apiKey is the Bearer token (OpenAI) or api-key header value (Azure).
	apiKey string
	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
	// azure selects Azure-style auth (api-key header) over Bearer token.
	azure bool
	// apiVersion is the Azure OpenAI API version query param (ignored for OpenAI).
	apiVersion string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name, or the deployment name on Azure.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version (e.g. "2025-04-01-preview").
	// Ignored when Azure is false.
	APIVersion string
	// Timeout bounds each HTTP call (default 30s).
	Timeout time.Duration
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: timeout},
	}
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "openai embedder"
	body := openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}

	var result openaiEmbedResponse
	status, err := postJSON(ctx, e.client, e.endpoint("/embeddings"), e.authHeaders(), body, &result)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbeddingService, op, err)
	}
	if status < 200 || status >= 300 {
		msg := http.StatusText(status)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, apperr.New(apperr.KindEmbeddingService, op, "HTTP %d: %s", status, msg)
	}
	if len(result.Data) != len(texts) {
		return nil, apperr.New(apperr.KindEmbeddingService, op, "expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) || embeddings[d.Index] != nil {
			return nil, apperr.New(apperr.KindEmbeddingService, op, "index %d out of range or repeated", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// HealthCheck lists models via GET /models, which costs no tokens.
func (e *OpenAIEmbedder) HealthCheck(ctx context.Context) error {
	return getOK(ctx, e.client, e.endpoint("/models"), e.authHeaders())
}

// endpoint builds the URL for path, adding the Azure deployment segment and
// api-version when needed.
func (e *OpenAIEmbedder) endpoint(path string) string {
	if !e.azure {
		return e.baseURL + path
	}
	if path == "/embeddings" {
		path = "/deployments/" + url.PathEscape(e.model) + path
	}
	return e.baseURL + path + "?api-version=" + url.QueryEscape(e.apiVersion)
}

func (e *OpenAIEmbedder) authHeaders() map[string]string {
	if e.azure {
		return map[string]string{"api-key": e.apiKey}
	}
	return map[string]string{"Authorization": "Bearer " + e.apiKey}
}
