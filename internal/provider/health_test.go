package provider

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      func(url string) Config
		status   int
		wantPath string
		wantAuth string
		wantErr  string
	}{
		{
			name:     "ollama ok",
			cfg:      func(u string) Config { return Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: u + "/"}} },
			status:   http.StatusOK,
			wantPath: "/api/tags",
		},
		{
			name: "openai compatible ok",
			cfg: func(u string) Config {
				return Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test", BaseURL: u + "/v1"}}
			},
			status:   http.StatusOK,
			wantPath: "/v1/models",
			wantAuth: "Bearer sk-test",
		},
		{
			name: "ark unauthorized",
			cfg: func(u string) Config {
				return Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "bad", BaseURL: u}}
			},
			status:   http.StatusUnauthorized,
			wantPath: "/models",
			wantAuth: "Bearer bad",
			wantErr:  "401",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var gotPath, gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			cfg := tc.cfg(srv.URL)
			err := cfg.HealthCheck(t.Context())
			if gotPath != tc.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tc.wantPath)
			}
			if gotAuth != tc.wantAuth {
				t.Errorf("Authorization = %q, want %q", gotAuth, tc.wantAuth)
			}
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("HealthCheck() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("HealthCheck() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestHealthRequest_Azure(t *testing.T) {
	t.Parallel()

	cfg := Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{
		APIKey: "k", Endpoint: "https://x.openai.azure.com/", APIVersion: "2024-02-01",
	}}
	target, h, err := cfg.healthRequest()
	if err != nil {
		t.Fatal(err)
	}
	if target != "https://x.openai.azure.com/openai/models?api-version=2024-02-01" {
		t.Errorf("target = %q", target)
	}
	if h.Get("api-key") != "k" {
		t.Errorf("api-key header = %q", h.Get("api-key"))
	}
}
