package embedder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// scriptedProvider encodes each text's numeric value into a vector so the
// caller can check ordering, and records batch sizes.
type scriptedProvider struct {
	dim     int
	batches []int
	// shortAt, when >= 0, makes the vector for that global text index one
	// element short.
	shortAt int
	seen    int
	err     error
	drop    bool
}

func (p *scriptedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.batches = append(p.batches, len(texts))
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		n, _ := strconv.Atoi(t)
		d := p.dim
		if p.seen == p.shortAt {
			d--
		}
		v := make([]float32, d)
		v[0] = float32(n)
		out = append(out, v)
		p.seen++
	}
	if p.drop {
		out = out[:len(out)-1]
	}
	return out, nil
}

func numbered(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}
	return texts
}

func TestClient_BatchesWithoutReordering(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{dim: 4, shortAt: -1}
	c, err := NewClient("fake", p, 4, 3)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := c.Embed(context.Background(), numbered(8))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("got %d vectors, want 8", len(got))
	}
	for i, v := range got {
		if v[0] != float32(i) {
			t.Errorf("vector %d encodes %v, want %d", i, v[0], i)
		}
		if len(v) != 4 {
			t.Errorf("vector %d has length %d", i, len(v))
		}
	}
	if fmt.Sprint(p.batches) != "[3 3 2]" {
		t.Errorf("batches = %v, want [3 3 2]", p.batches)
	}
}

func TestClient_EmptyInputMakesNoCall(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{dim: 2, shortAt: -1}
	c, _ := NewClient("fake", p, 2, 0)
	got, err := c.Embed(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("Embed(nil) = %v, %v", got, err)
	}
	if len(p.batches) != 0 {
		t.Errorf("provider called %d times", len(p.batches))
	}
}

func TestClient_DimensionMismatch(t *testing.T) {
	t.Parallel()
	c, _ := NewClient("fake", &scriptedProvider{dim: 4, shortAt: 5}, 4, 2)
	_, err := c.Embed(context.Background(), numbered(8))
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want DimensionMismatchError", err)
	}
}

func TestClient_LearnsDimension(t *testing.T) {
	t.Parallel()
	c, _ := NewClient("fake", &scriptedProvider{dim: 5, shortAt: -1}, 0, 0)
	if c.Dimension() != 0 {
		t.Fatalf("Dimension before first call = %d, want 0", c.Dimension())
	}
	if _, err := c.Embed(context.Background(), numbered(2)); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if c.Dimension() != 5 {
		t.Errorf("Dimension = %d, want 5", c.Dimension())
	}

	c2, _ := NewClient("fake", &scriptedProvider{dim: 5, shortAt: 1}, 0, 0)
	if _, err := c2.Embed(context.Background(), numbered(3)); !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("mixed lengths: error = %v, want DimensionMismatchError", err)
	}
}

func TestClient_ProviderFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    *scriptedProvider
	}{
		{"plain error", &scriptedProvider{err: errors.New("connection refused")}},
		{"count mismatch", &scriptedProvider{dim: 2, shortAt: -1, drop: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := NewClient("fake", tc.p, 2, 0)
			_, err := c.Embed(context.Background(), numbered(3))
			if !errors.Is(err, apperr.ErrEmbeddingService) {
				t.Fatalf("error = %v, want EmbeddingServiceError", err)
			}
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewClient("x", nil, 0, 0); err == nil {
		t.Error("nil provider accepted")
	}
	if _, err := NewClient("x", &scriptedProvider{}, -1, 0); err == nil {
		t.Error("negative dimension accepted")
	}
}
