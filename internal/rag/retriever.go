package rag

import (
	"context"
	"fmt"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// Retriever combines an Embedder and an Index. It embeds the query at
// retrieval time and delegates similarity search to the index. It holds no
// per-request state.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index Index
}

// NewRetriever constructs a Retriever from the given Embedder and Index.
func NewRetriever(embedder Embedder, index Index) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Retrieve embeds query and returns the top k matches stored under name.
// A non-positive k still reaches the index, so an unknown name fails with
// IndexNotFound rather than returning an empty result. Error kinds from the
// embedder and the index pass through unchanged.
func (r *Retriever) Retrieve(ctx context.Context, name, query string, k int) ([]Match, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, apperr.New(apperr.KindEmbeddingService, "rag: embedding query", "embedder returned %d vectors for 1 query", len(vectors))
	}

	matches, err := r.index.Search(ctx, name, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}
	return matches, nil
}
