// Package tracing wires Langfuse into every eino component call so each
// generation (prompt, streamed tokens, model name) is traceable.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/docqa-go/internal/version"
)

// Config holds the Langfuse connection settings.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool { return c.PublicKey != "" && c.SecretKey != "" }

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY. The host defaults to a local Langfuse instance.
func ConfigFromEnv() Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = "http://localhost:3000"
	}
	return Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Setup initialises the Langfuse callback handler from the environment and
// registers it globally. It returns a flush function that must be called
// before process exit to ensure all traces are sent, and false when
// Langfuse is not configured.
func Setup() (func(), bool) {
	handler, flush, ok := NewHandler(ConfigFromEnv())
	if !ok {
		return func() {}, false
	}
	callbacks.AppendGlobalHandlers(handler)
	return flush, true
}

// NewHandler builds the Langfuse handler for cfg without registering it.
// When cfg is not enabled, it returns nil, nil, false.
func NewHandler(cfg Config) (callbacks.Handler, func(), bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      "docqa",
		Release:   version.Version,
	})
	return handler, flusher, true
}
