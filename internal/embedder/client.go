package embedder

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/rag"
)

// DefaultBatchSize is the number of texts sent per provider request when
// EMBEDDING_BATCH_SIZE is unset.
const DefaultBatchSize = 64

// Client wraps an embedding provider with batching and dimension checks.
// It satisfies rag.Embedder and is safe for concurrent use.
type Client struct {
	// provider performs the actual HTTP calls.
	provider rag.Embedder

	// batchSize caps the number of texts per provider call.
	batchSize int

	// dim is the vector length every result must have. Zero until known:
	// a client built without a configured dimension adopts the length of the
	// first vector it receives and enforces it from then on.
	dim atomic.Int64

	// name labels the backend in errors and logs.
	name string
}

// NewClient wraps provider. dim is the expected vector length (0 to learn it
// from the first response); batchSize <= 0 selects DefaultBatchSize.
func NewClient(name string, provider rag.Embedder, dim, batchSize int) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedder: provider must not be nil")
	}
	if dim < 0 {
		return nil, fmt.Errorf("embedder: dimension must not be negative, got %d", dim)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	c := &Client{provider: provider, batchSize: batchSize, name: name}
	c.dim.Store(int64(dim))
	return c, nil
}

// Name returns the backend label.
func (c *Client) Name() string { return c.name }

// Dimension returns the enforced vector length, or 0 if it is not known yet.
func (c *Client) Dimension() int { return int(c.dim.Load()) }

// Embed returns one vector per text, in input order. Texts are sent in
// batches of at most batchSize; batches are issued sequentially so results
// never reorder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embedder: embed"
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vectors, err := c.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, apperr.Wrap(apperr.KindEmbeddingService, op, err)
		}
		if len(vectors) != end-start {
			return nil, apperr.New(apperr.KindEmbeddingService, op, "%s returned %d vectors for %d texts", c.name, len(vectors), end-start)
		}
		for i, v := range vectors {
			if err := c.checkDimension(v); err != nil {
				return nil, apperr.New(apperr.KindDimensionMismatch, op, "text %d: %v", start+i, err)
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// checkDimension enforces the configured or learned dimension on v.
func (c *Client) checkDimension(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty vector")
	}
	want := c.dim.Load()
	if want == 0 && c.dim.CompareAndSwap(0, int64(len(v))) {
		return nil
	}
	want = c.dim.Load()
	if int64(len(v)) != want {
		return fmt.Errorf("got dimension %d, want %d", len(v), want)
	}
	return nil
}

// HealthChecker is implemented by providers that can be probed without
// spending an embedding call.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Ping probes the provider when it supports a health check.
func (c *Client) Ping(ctx context.Context) error {
	hc, ok := c.provider.(HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedder: %s health check failed: %w", c.name, err)
	}
	return nil
}
