package rag

import (
	"errors"
	"math"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
)

func TestScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		d    Distance
		a, b []float32
		want float64
	}{
		{"cosine identical", DistanceCosine, []float32{1, 2}, []float32{2, 4}, 1},
		{"cosine orthogonal", DistanceCosine, []float32{1, 0}, []float32{0, 1}, 0},
		{"cosine opposite", DistanceCosine, []float32{1, 0}, []float32{-1, 0}, -1},
		{"cosine zero vector", DistanceCosine, []float32{0, 0}, []float32{1, 0}, 0},
		{"l2 same point", DistanceL2, []float32{3, 4}, []float32{3, 4}, 0},
		{"l2 negated distance", DistanceL2, []float32{0, 0}, []float32{3, 4}, -5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := float64(Score(tc.d, tc.a, tc.b))
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("Score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRank_TruncatesAndOrders(t *testing.T) {
	t.Parallel()
	chunks := []Chunk{
		{ID: 3, Vector: []float32{0, 1}},
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{1, 1}},
		{ID: 0, Vector: []float32{1, 0}},
	}
	got := Rank(DistanceCosine, chunks, []float32{1, 0}, 3)
	wantIDs := []int{0, 1, 2}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d matches, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].Chunk.ID != id {
			t.Errorf("position %d = chunk %d, want %d", i, got[i].Chunk.ID, id)
		}
	}
}

func TestRank_NonPositiveK(t *testing.T) {
	t.Parallel()
	chunks := []Chunk{{ID: 0, Vector: []float32{1}}}
	for _, k := range []int{0, -1} {
		if got := Rank(DistanceCosine, chunks, []float32{1}, k); len(got) != 0 {
			t.Errorf("Rank(k=%d) returned %d matches", k, len(got))
		}
	}
}

func TestValidateChunks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		chunks  []Chunk
		dim     int
		wantDim int
		wantErr error
	}{
		{"infers dimension", []Chunk{{ID: 0, Vector: []float32{1, 2}}}, 0, 2, nil},
		{"empty set keeps configured dim", nil, 5, 5, nil},
		{"missing vector", []Chunk{{ID: 0}}, 0, 0, apperr.ErrDimensionMismatch},
		{"mixed lengths", []Chunk{{ID: 0, Vector: []float32{1}}, {ID: 1, Vector: []float32{1, 2}}}, 0, 0, apperr.ErrDimensionMismatch},
		{"configured mismatch", []Chunk{{ID: 0, Vector: []float32{1}}}, 3, 0, apperr.ErrDimensionMismatch},
		{"duplicate id", []Chunk{{ID: 0, Vector: []float32{1}}, {ID: 0, Vector: []float32{2}}}, 0, 0, apperr.ErrIndexBuild},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dim, err := ValidateChunks("test", tc.chunks, tc.dim)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dim != tc.wantDim {
				t.Errorf("dim = %d, want %d", dim, tc.wantDim)
			}
		})
	}
}

func TestParseDistance(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Distance{"": DistanceCosine, "Cosine": DistanceCosine, "l2": DistanceL2, "euclid": DistanceL2} {
		got, err := ParseDistance(in)
		if err != nil || got != want {
			t.Errorf("ParseDistance(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDistance("dot"); err == nil {
		t.Error("ParseDistance(dot) succeeded, want error")
	}
}

func TestTopK_TiesAtBoundaryKeepLowestIDs(t *testing.T) {
	t.Parallel()
	// Backend order puts the higher IDs of a tied group first.
	matches := []Match{
		{Chunk: Chunk{ID: 9}, Score: 0.9},
		{Chunk: Chunk{ID: 7}, Score: 0.5},
		{Chunk: Chunk{ID: 5}, Score: 0.5},
		{Chunk: Chunk{ID: 2}, Score: 0.5},
		{Chunk: Chunk{ID: 1}, Score: 0.1},
	}
	got := TopK(matches, 3)
	wantIDs := []int{9, 2, 5}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d matches, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].Chunk.ID != id {
			t.Errorf("position %d = chunk %d, want %d", i, got[i].Chunk.ID, id)
		}
	}
	if n := len(TopK(matches, 0)); n != 0 {
		t.Errorf("TopK(k=0) returned %d matches", n)
	}
}

func TestOverFetch_ExceedsK(t *testing.T) {
	t.Parallel()
	for _, k := range []int{1, 4, 100} {
		if got := overFetch(k); got <= k {
			t.Errorf("overFetch(%d) = %d, want more than k", k, got)
		}
	}
}
