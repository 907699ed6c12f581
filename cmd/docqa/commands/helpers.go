package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/pipeline"
	"github.com/54b3r/docqa-go/internal/provider"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/store"
)

// app bundles the pipeline with the clients it was built from, so serve can
// probe them and every command can release them.
type app struct {
	pipeline *pipeline.Pipeline
	settings config.Settings
	provider *provider.Config
	embedder *embedder.Client
	index    rag.Index
}

// buildApp wires settings, embedder, chat model, generator and index into a
// pipeline. obs may be nil.
func buildApp(ctx context.Context, log *slog.Logger, obs pipeline.Observer) (*app, error) {
	settings, err := config.SettingsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	embCfg, err := embedder.ValidateForRAG(log)
	if err != nil {
		return nil, err
	}
	emb, err := embedder.New(embCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	provCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, provCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	gen, err := generator.New(generator.Config{
		ChatModel:        chatModel,
		ModelName:        provCfg.ModelName(),
		MaxContextTokens: settings.MaxContextTokens,
	})
	if err != nil {
		return nil, err
	}

	idx, err := openIndex(ctx, settings.Index, emb.Dimension())
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		Settings:  settings,
		Embedder:  emb,
		Index:     idx,
		Generator: gen,
		Observer:  obs,
	})
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	log.Info("pipeline ready",
		slog.String("provider", string(provCfg.Backend)),
		slog.String("model", provCfg.ModelName()),
		slog.String("embedder", emb.Name()),
		slog.String("index", settings.Index.Backend),
		slog.String("language", settings.Language),
	)
	return &app{pipeline: p, settings: settings, provider: provCfg, embedder: emb, index: idx}, nil
}

// Close releases the index backend.
func (a *app) Close() error { return a.index.Close() }

// pingers returns the readiness probes for every remote dependency.
func (a *app) pingers() []server.Pinger {
	ps := []server.Pinger{
		server.NewLLMPinger(a.provider, string(a.provider.Backend)),
		server.NewDependencyPinger("embedder:"+a.embedder.Name(), a.embedder),
	}
	if p, ok := a.index.(interface{ Ping(context.Context) error }); ok {
		ps = append(ps, server.NewDependencyPinger(a.settings.Index.Backend, p))
	}
	return ps
}

// openIndex opens the vector index backend named by s.Backend. dim is the
// embedding dimension when known, 0 otherwise.
func openIndex(ctx context.Context, s config.IndexSettings, dim int) (rag.Index, error) {
	distance, err := rag.ParseDistance(s.Distance)
	if err != nil {
		return nil, err
	}
	switch s.Backend {
	case "", "memory":
		return rag.NewMemoryIndex(distance, dim, rag.WithMaxNames(s.MemoryMaxNames)), nil
	case "sqlite":
		idx, err := store.Open(s.SQLitePath, store.Options{Distance: distance, Dim: dim, Label: s.NodeLabel})
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "chromem":
		idx, err := rag.NewChromemIndex(s.ChromemPath, dim, s.NodeLabel)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "qdrant":
		idx, err := rag.NewQdrantIndex(rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
			VectorSize: dim,
			Distance:   distance,
			Label:      s.NodeLabel,
		})
		if err != nil {
			return nil, err
		}
		if err := idx.Ping(ctx); err != nil {
			_ = idx.Close()
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q (valid: memory, sqlite, chromem, qdrant)", s.Backend)
	}
}

// envOr returns the named environment variable or fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr returns the named environment variable as an int, or fallback
// when unset or malformed.
func envIntOr(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
