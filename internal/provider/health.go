package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default API roots used by the health probe when no base URL is configured.
const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultArkBaseURL    = "https://ark.cn-beijing.volces.com/api/v3"
)

// healthClient is shared by all probes. Readiness callers bound each probe
// with their own context deadline as well.
var healthClient = &http.Client{Timeout: 10 * time.Second}

// HealthCheck probes the selected backend with a model-listing request,
// which costs no tokens. It returns nil on any 2xx response.
func (c *Config) HealthCheck(ctx context.Context) error {
	target, header, err := c.healthRequest()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	req.Header = header
	resp, err := healthClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %s unreachable: %w", c.Backend, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("provider: %s health check returned %s", c.Backend, resp.Status)
	}
	return nil
}

// healthRequest returns the probe URL and headers for the selected backend.
func (c *Config) healthRequest() (string, http.Header, error) {
	h := http.Header{}
	switch c.Backend {
	case BackendOllama:
		return join(c.Ollama.Host, "/api/tags"), h, nil
	case BackendOpenAI:
		h.Set("Authorization", "Bearer "+c.OpenAI.APIKey)
		return join(orDefault(c.OpenAI.BaseURL, defaultOpenAIBaseURL), "/models"), h, nil
	case BackendAzure:
		h.Set("api-key", c.AzureOpenAI.APIKey)
		return join(c.AzureOpenAI.Endpoint, "/openai/models") + "?api-version=" + url.QueryEscape(c.AzureOpenAI.APIVersion), h, nil
	case BackendGemini:
		h.Set("x-goog-api-key", c.Gemini.APIKey)
		return join(defaultGeminiBaseURL, "/models"), h, nil
	case BackendArk:
		h.Set("Authorization", "Bearer "+c.Ark.APIKey)
		return join(orDefault(c.Ark.BaseURL, defaultArkBaseURL), "/models"), h, nil
	default:
		return "", nil, fmt.Errorf("provider: unknown backend %q", c.Backend)
	}
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
