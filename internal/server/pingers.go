package server

import (
	"context"
	"fmt"
)

// HealthChecker probes a backend without spending a model call.
// *provider.Config satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LLMPinger probes the chat model backend with a model-listing request, so
// readiness checks never consume tokens.
type LLMPinger struct {
	// check probes the backend.
	check HealthChecker
	// name identifies the backend in readiness responses (e.g. "llm:ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given backend.
func NewLLMPinger(check HealthChecker, backend string) *LLMPinger {
	return &LLMPinger{check: check, name: "llm:" + backend}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the LLM backend for readiness.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if err := p.check.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// pingable is satisfied by the embedding client and the persistent index
// backends.
type pingable interface {
	Ping(ctx context.Context) error
}

// DependencyPinger adapts any client with a Ping method into a Pinger under
// a fixed name. It covers the embedding host, Qdrant and SQLite.
type DependencyPinger struct {
	name   string
	target pingable
}

// NewDependencyPinger labels target as name in readiness responses.
func NewDependencyPinger(name string, target pingable) *DependencyPinger {
	return &DependencyPinger{name: name, target: target}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping calls the target's own probe.
// Returns nil if the dependency is reachable, or a descriptive error otherwise.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
