package server

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeHealthChecker struct{ err error }

func (f fakeHealthChecker) HealthCheck(context.Context) error { return f.err }

type fakePingable struct{ err error }

func (f fakePingable) Ping(context.Context) error { return f.err }

func TestLLMPinger(t *testing.T) {
	t.Parallel()

	ok := NewLLMPinger(fakeHealthChecker{}, "ollama")
	if ok.Name() != "llm:ollama" {
		t.Errorf("Name() = %q", ok.Name())
	}
	if err := ok.Ping(t.Context()); err != nil {
		t.Errorf("Ping() = %v", err)
	}

	down := NewLLMPinger(fakeHealthChecker{err: errors.New("401 Unauthorized")}, "openai")
	if err := down.Ping(t.Context()); err == nil || !strings.Contains(err.Error(), "llm:openai") {
		t.Errorf("Ping() = %v, want error naming backend", err)
	}
}

func TestDependencyPinger(t *testing.T) {
	t.Parallel()

	p := NewDependencyPinger("sqlite", fakePingable{err: errors.New("database is locked")})
	if p.Name() != "sqlite" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Ping(t.Context()); err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("Ping() = %v", err)
	}
	if err := NewDependencyPinger("embedder", fakePingable{}).Ping(t.Context()); err != nil {
		t.Errorf("healthy Ping() = %v", err)
	}
}
