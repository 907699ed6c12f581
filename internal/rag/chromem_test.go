package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/rag/ragtest"
)

func TestChromemIndex_Contract(t *testing.T) {
	ragtest.Run(t, func(t *testing.T) rag.Index {
		idx, err := rag.NewChromemIndex("", 0, "PdfBotChunk")
		if err != nil {
			t.Fatalf("NewChromemIndex: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		return idx
	})
}

func TestChromemIndex_PersistentRestore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	first, err := rag.NewChromemIndex(dir, ragtest.Dim, "PdfBotChunk")
	if err != nil {
		t.Fatalf("NewChromemIndex: %v", err)
	}
	if err := first.Build(ctx, "doc-a", ragtest.Fixture(4)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := first.Build(ctx, "doc-a", ragtest.Fixture(2)); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	_ = first.Close()

	second, err := rag.NewChromemIndex(dir, ragtest.Dim, "PdfBotChunk")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Search(ctx, "doc-a", []float32{1, 1, 1}, 10)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d matches after reopen, want the 2 from the latest build", len(got))
	}
}

func TestChromemIndex_RejectsSeparatorInName(t *testing.T) {
	t.Parallel()
	idx, _ := rag.NewChromemIndex("", 0, "")
	err := idx.Build(context.Background(), "a~b", ragtest.Fixture(1))
	if !errors.Is(err, apperr.ErrIndexBuild) {
		t.Fatalf("Build error = %v, want IndexBuildError", err)
	}
}
