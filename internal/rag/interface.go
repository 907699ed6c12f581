// Package rag defines the vector-index and retrieval components of the
// document pipeline. Concrete indexes (in-memory, Qdrant, chromem, SQLite in
// internal/store) satisfy Index so the pipeline never depends on a specific
// backend.
package rag

import (
	"context"
	"fmt"
	"strings"
)

// Chunk is one embedded unit of a document as stored in an index.
type Chunk struct {
	// ID is the chunk's sequence index within its document.
	ID int

	// Text is the raw text of the chunk.
	Text string

	// Vector is the chunk embedding. Build rejects chunks without one.
	Vector []float32
}

// Match is a chunk returned by a search together with its score.
// Higher scores are more similar.
type Match struct {
	Chunk Chunk
	Score float32
}

// Index stores chunk vectors under a name and answers nearest-neighbour
// queries against them. Implementations must be safe to call from multiple
// goroutines; builds of the same name serialize and a concurrent Search
// observes either the previous or the new contents, never a mix.
type Index interface {
	// Build replaces whatever is stored under name with chunks as one
	// operation. Building an unknown name is not an error. A failed build
	// leaves the previous contents intact.
	Build(ctx context.Context, name string, chunks []Chunk) error

	// Search returns up to k chunks ordered by descending score, ties broken
	// by ascending chunk ID. k <= 0 yields an empty result.
	Search(ctx context.Context, name string, vector []float32, k int) ([]Match, error)

	// Close releases any resources held by the index.
	Close() error
}

// Embedder converts a batch of texts into vectors, one per input, in order.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Distance is the similarity metric used by an index.
type Distance string

const (
	// DistanceCosine scores by cosine similarity.
	DistanceCosine Distance = "cosine"
	// DistanceL2 scores by negated Euclidean distance.
	DistanceL2 Distance = "l2"
)

// ParseDistance maps a configuration value onto a Distance. The empty string
// selects cosine.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return DistanceCosine, nil
	case "l2", "euclid", "euclidean":
		return DistanceL2, nil
	default:
		return "", fmt.Errorf("rag: unknown distance %q (want cosine or l2)", s)
	}
}
