// Package ragtest holds the behavioural test suite every rag.Index backend
// must pass.
package ragtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Dim is the vector length used by the suite's fixtures.
const Dim = 3

// Fixture returns n chunks with distinct, non-zero 3-d vectors.
func Fixture(n int) []rag.Chunk {
	chunks := make([]rag.Chunk, n)
	for i := range chunks {
		chunks[i] = rag.Chunk{
			ID:     i,
			Text:   fmt.Sprintf("chunk %d", i),
			Vector: []float32{1, float32(i), float32(i * i % 7)},
		}
	}
	return chunks
}

// Run exercises newIndex against the Index contract. newIndex must return a
// fresh, empty index using cosine distance.
func Run(t *testing.T, newIndex func(t *testing.T) rag.Index) {
	t.Helper()
	ctx := context.Background()

	t.Run("build then search returns every chunk", func(t *testing.T) {
		idx := newIndex(t)
		chunks := Fixture(5)
		if err := idx.Build(ctx, "doc-a", chunks); err != nil {
			t.Fatalf("Build: %v", err)
		}
		got, err := idx.Search(ctx, "doc-a", []float32{1, 2, 4}, len(chunks))
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != len(chunks) {
			t.Fatalf("got %d matches, want %d", len(got), len(chunks))
		}
		seen := map[int]bool{}
		for i, m := range got {
			if seen[m.Chunk.ID] {
				t.Errorf("duplicate chunk %d", m.Chunk.ID)
			}
			seen[m.Chunk.ID] = true
			if m.Chunk.Text != fmt.Sprintf("chunk %d", m.Chunk.ID) {
				t.Errorf("chunk %d text = %q", m.Chunk.ID, m.Chunk.Text)
			}
			if i > 0 && got[i-1].Score < m.Score {
				t.Errorf("results not ordered by score at %d: %v < %v", i, got[i-1].Score, m.Score)
			}
		}
	})

	t.Run("k zero returns empty", func(t *testing.T) {
		idx := newIndex(t)
		if err := idx.Build(ctx, "doc-a", Fixture(3)); err != nil {
			t.Fatalf("Build: %v", err)
		}
		got, err := idx.Search(ctx, "doc-a", []float32{1, 0, 0}, 0)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d matches, want 0", len(got))
		}
	})

	t.Run("k larger than index returns all", func(t *testing.T) {
		idx := newIndex(t)
		if err := idx.Build(ctx, "doc-a", Fixture(3)); err != nil {
			t.Fatalf("Build: %v", err)
		}
		got, err := idx.Search(ctx, "doc-a", []float32{1, 0, 0}, 50)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("got %d matches, want 3", len(got))
		}
	})

	t.Run("ties break by ascending id", func(t *testing.T) {
		idx := newIndex(t)
		chunks := []rag.Chunk{
			{ID: 2, Text: "c", Vector: []float32{1, 0, 0}},
			{ID: 0, Text: "a", Vector: []float32{1, 0, 0}},
			{ID: 1, Text: "b", Vector: []float32{1, 0, 0}},
		}
		if err := idx.Build(ctx, "doc-a", chunks); err != nil {
			t.Fatalf("Build: %v", err)
		}
		got, err := idx.Search(ctx, "doc-a", []float32{1, 0, 0}, 3)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for i, m := range got {
			if m.Chunk.ID != i {
				t.Errorf("position %d has chunk %d, want %d", i, m.Chunk.ID, i)
			}
		}
	})

	t.Run("rebuild removes previous entries", func(t *testing.T) {
		idx := newIndex(t)
		if err := idx.Build(ctx, "doc-a", Fixture(4)); err != nil {
			t.Fatalf("Build: %v", err)
		}
		replacement := []rag.Chunk{{ID: 0, Text: "fresh", Vector: []float32{0, 1, 0}}}
		if err := idx.Build(ctx, "doc-a", replacement); err != nil {
			t.Fatalf("rebuild: %v", err)
		}
		got, err := idx.Search(ctx, "doc-a", []float32{1, 1, 1}, 10)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 1 || got[0].Chunk.Text != "fresh" {
			t.Fatalf("after rebuild got %+v, want only the fresh chunk", got)
		}
	})

	t.Run("failed build leaves previous index intact", func(t *testing.T) {
		idx := newIndex(t)
		if err := idx.Build(ctx, "doc-a", Fixture(3)); err != nil {
			t.Fatalf("Build: %v", err)
		}
		bad := []rag.Chunk{{ID: 0, Text: "x", Vector: []float32{1, 0, 0}}, {ID: 1, Text: "y"}}
		err := idx.Build(ctx, "doc-a", bad)
		if !errors.Is(err, apperr.ErrDimensionMismatch) {
			t.Fatalf("Build(bad) error = %v, want DimensionMismatchError", err)
		}
		got, err := idx.Search(ctx, "doc-a", []float32{1, 0, 0}, 10)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("got %d matches after failed build, want 3", len(got))
		}
	})

	t.Run("unknown name is IndexNotFound", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Search(ctx, "never-built", []float32{1, 0, 0}, 3)
		if !errors.Is(err, apperr.ErrIndexNotFound) {
			t.Fatalf("Search error = %v, want IndexNotFoundError", err)
		}
	})

	t.Run("unknown name is IndexNotFound even for k zero", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Search(ctx, "never-built", []float32{1, 0, 0}, 0)
		if !errors.Is(err, apperr.ErrIndexNotFound) {
			t.Fatalf("Search error = %v, want IndexNotFoundError", err)
		}
	})

	t.Run("names are isolated", func(t *testing.T) {
		idx := newIndex(t)
		if err := idx.Build(ctx, "doc-a", Fixture(2)); err != nil {
			t.Fatalf("Build a: %v", err)
		}
		if err := idx.Build(ctx, "doc-b", []rag.Chunk{{ID: 0, Text: "only b", Vector: []float32{0, 0, 1}}}); err != nil {
			t.Fatalf("Build b: %v", err)
		}
		got, err := idx.Search(ctx, "doc-b", []float32{1, 1, 1}, 10)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 1 || got[0].Chunk.Text != "only b" {
			t.Errorf("doc-b search got %+v", got)
		}
	})

	t.Run("concurrent search during rebuild sees a whole index", func(t *testing.T) {
		idx := newIndex(t)
		small, large := Fixture(2), Fixture(6)
		if err := idx.Build(ctx, "doc-a", small); err != nil {
			t.Fatalf("Build: %v", err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, 64)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 10 {
					got, err := idx.Search(ctx, "doc-a", []float32{1, 1, 1}, 100)
					if err != nil {
						errs <- err
						return
					}
					if n := len(got); n != len(small) && n != len(large) {
						errs <- fmt.Errorf("observed partial index of %d chunks", n)
						return
					}
				}
			}()
		}
		for i := range 5 {
			next := large
			if i%2 == 1 {
				next = small
			}
			if err := idx.Build(ctx, "doc-a", next); err != nil {
				t.Errorf("rebuild %d: %v", i, err)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}
