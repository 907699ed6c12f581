//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOllamaClient_Integration embeds a small batch through a locally
// running Ollama instance via the batching Client.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaClient_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaClient_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	client, err := NewClient("ollama", NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), 0, 2)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		t.Skipf("ollama unreachable: %v", err)
	}

	texts := []string{
		"The invoice is payable within thirty days.",
		"Photosynthesis converts light into chemical energy.",
		"Late payments accrue two percent monthly interest.",
	}
	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != client.Dimension() {
			t.Errorf("vector %d has dim %d, client enforces %d", i, len(v), client.Dimension())
		}
	}
	t.Logf("model=%s dim=%d (set EMBEDDING_DIMENSIONS=%d to pin it)", model, client.Dimension(), client.Dimension())
}
