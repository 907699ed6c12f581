// Package chunker splits extracted document text into overlapping,
// bounded-size chunks suitable for embedding.
//
// Chunk i always starts at rune offset i*(size-overlap). A chunk extends up to
// size runes; non-final chunks may end early at a natural boundary (paragraph
// break, sentence end, whitespace) as long as that boundary lies inside the
// overlap zone, so consecutive chunks never leave a gap.
package chunker

import (
	"unicode"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// Default chunking parameters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunk is one contiguous slice of the source text.
type Chunk struct {
	// ID is the sequence index of the chunk within the document.
	ID int
	// Text is the chunk content.
	Text string
	// Start is the rune offset of the first rune of Text in the source.
	Start int
	// End is the rune offset one past the last rune of Text.
	End int
}

// Chunker is a pure, deterministic text splitter. It is safe for
// concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New validates the parameters and returns a Chunker.
// It fails with an InvalidRequestError unless 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "chunker", "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, apperr.New(apperr.KindInvalidRequest, "chunker", "overlap must satisfy 0 <= overlap < %d, got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the nominal overlap between consecutive chunks in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered chunks covering text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var chunks []Chunk
	for i, start := 0, 0; start < n; i, start = i+1, start+stride {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, Chunk{ID: i, Text: string(runes[start:n]), Start: start, End: n})
			break
		}
		end = naturalEnd(runes, start+stride, end)
		chunks = append(chunks, Chunk{ID: i, Text: string(runes[start:end]), Start: start, End: end})
	}
	return chunks
}

// naturalEnd picks the best cut point in runes[lo:hi], where lo is the next
// chunk's start and hi the hard limit. Preference order: paragraph break,
// sentence end, whitespace; otherwise hi.
func naturalEnd(runes []rune, lo, hi int) int {
	if lo >= hi {
		return hi
	}
	sentence, space := -1, -1
	for cut := hi; cut > lo; cut-- {
		prev := runes[cut-1]
		if prev == '\n' && cut-2 >= 0 && runes[cut-2] == '\n' {
			return cut
		}
		if sentence < 0 && isSentenceEnd(prev) && (cut == len(runes) || unicode.IsSpace(runes[cut])) {
			sentence = cut
		}
		if space < 0 && unicode.IsSpace(prev) {
			space = cut
		}
	}
	if sentence > 0 {
		return sentence
	}
	if space > 0 {
		return space
	}
	return hi
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// Reassemble rebuilds the source text from chunks produced by Split by
// dropping the overlapping prefix of every chunk after the first.
func Reassemble(chunks []Chunk) string {
	var out []rune
	for i, ch := range chunks {
		r := []rune(ch.Text)
		if i+1 < len(chunks) {
			keep := chunks[i+1].Start - ch.Start
			if keep < len(r) {
				r = r[:keep]
			}
		}
		out = append(out, r...)
	}
	return string(out)
}
