// Package budget estimates prompt sizes in tokens. The generator works with
// several LLM backends whose tokenizers differ, so estimation uses a
// conservative character heuristic: 1 token ≈ 4 characters. A prompt that
// does not fit is rejected outright; retrieved context is never trimmed.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role and framing tokens most chat
	// APIs add around each message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models (Llama 3 8B, GPT-3.5) with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s. Characters are counted as
// runes so non-Latin text is not over-counted by its UTF-8 byte length.
func Estimate(s string) int {
	chars := utf8.RuneCountInString(s)
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role, content and per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		if m == nil {
			continue
		}
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Fits reports whether msgs fit within maxTokens and returns the estimate.
// A non-positive maxTokens means DefaultMaxContextTokens.
func Fits(msgs []*schema.Message, maxTokens int) (int, bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	n := EstimateMessages(msgs)
	return n, n <= maxTokens
}
