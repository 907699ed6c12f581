package rag

import (
	"cmp"
	"math"
	"slices"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// Score returns the similarity of a and b under d. Cosine similarity is in
// [-1, 1]; L2 is returned negated so that larger is always more similar.
// Zero-magnitude vectors score 0 under cosine.
func Score(d Distance, a, b []float32) float32 {
	switch d {
	case DistanceL2:
		var sum float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			sum += diff * diff
		}
		return -float32(math.Sqrt(sum))
	default:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
	}
}

// Rank scores every chunk against query and returns the top k matches in
// canonical order: score descending, then chunk ID ascending.
func Rank(d Distance, chunks []Chunk, query []float32, k int) []Match {
	if k <= 0 || len(chunks) == 0 {
		return []Match{}
	}
	matches := make([]Match, len(chunks))
	for i, c := range chunks {
		matches[i] = Match{Chunk: c, Score: Score(d, query, c.Vector)}
	}
	return TopK(matches, k)
}

// tieMargin is how many extra candidates backends with their own ranking
// fetch beyond k, so that chunks tied at the k boundary are all seen before
// the canonical tie-break picks among them.
const tieMargin = 16

// overFetch returns the candidate count to request from a backend for k.
func overFetch(k int) int {
	return k + tieMargin
}

// TopK sorts matches into canonical order and keeps the first k.
func TopK(matches []Match, k int) []Match {
	if k <= 0 {
		return []Match{}
	}
	SortMatches(matches)
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

// SortMatches orders matches by score descending, then chunk ID ascending.
// Backends whose native ordering breaks ties differently re-sort with it.
func SortMatches(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})
}

// ValidateChunks checks that every chunk carries a vector of length dim and
// that IDs are unique. When dim is 0 the first chunk's length is taken as
// the dimension. It returns the dimension in effect.
func ValidateChunks(op string, chunks []Chunk, dim int) (int, error) {
	seen := make(map[int]struct{}, len(chunks))
	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return 0, apperr.New(apperr.KindDimensionMismatch, op, "chunk %d has no vector", c.ID)
		}
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) != dim {
			return 0, apperr.New(apperr.KindDimensionMismatch, op, "chunk %d has dimension %d, want %d", c.ID, len(c.Vector), dim)
		}
		if _, dup := seen[c.ID]; dup {
			return 0, apperr.New(apperr.KindIndexBuild, op, "duplicate chunk id %d", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return dim, nil
}

// ValidateQuery checks a query vector against the index dimension. A dim of
// 0 (an empty index) accepts any query.
func ValidateQuery(op string, vector []float32, dim int) error {
	if dim != 0 && len(vector) != dim {
		return apperr.New(apperr.KindDimensionMismatch, op, "query has dimension %d, want %d", len(vector), dim)
	}
	return nil
}
