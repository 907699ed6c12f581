package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrap_KeepsOriginatingKind(t *testing.T) {
	t.Parallel()

	inner := New(KindEmbeddingService, "embedder: embed", "quota exceeded")
	outer := Wrap(KindIndexBuild, "pipeline: index", fmt.Errorf("build: %w", inner))

	if got := KindOf(outer); got != KindEmbeddingService {
		t.Errorf("KindOf = %q, want %q", got, KindEmbeddingService)
	}
	if !errors.Is(outer, ErrEmbeddingService) {
		t.Error("errors.Is(outer, ErrEmbeddingService) = false, want true")
	}
	if errors.Is(outer, ErrIndexBuild) {
		t.Error("errors.Is(outer, ErrIndexBuild) = true, want false")
	}
}

func TestWrap_Nil(t *testing.T) {
	t.Parallel()
	if err := Wrap(KindGeneration, "op", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	t.Parallel()
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Errorf("KindOf = %q, want %q", got, KindInternal)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()
	err := New(KindExtraction, "extract: pdf", "no text on any page")
	want := "extract: pdf: ExtractionError: no text on any page"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidRequest, http.StatusBadRequest},
		{KindExtraction, http.StatusUnprocessableEntity},
		{KindContextTooLarge, http.StatusRequestEntityTooLarge},
		{KindIndexNotFound, http.StatusNotFound},
		{KindEmbeddingService, http.StatusBadGateway},
		{KindGeneration, http.StatusBadGateway},
		{KindDimensionMismatch, http.StatusBadGateway},
		{KindIndexBuild, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := HTTPStatus(tc.kind); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}
