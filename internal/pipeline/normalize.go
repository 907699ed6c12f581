package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

// edgeJunk is stripped from both ends of a model answer.
const edgeJunk = " \t\r\n\"'`“”‘’«»*_.,;:!?"

// NormalizeTerm cleans a classification answer and snaps it onto the
// candidate spelling. It reports false when the answer names no candidate,
// in which case the cleaned answer is returned unchanged.
func NormalizeTerm(raw string, candidates []string) (string, bool) {
	s := strings.Trim(strings.TrimSpace(raw), edgeJunk)
	for _, c := range candidates {
		if strings.EqualFold(s, c) {
			return c, true
		}
	}

	// Accept an answer that mentions exactly one candidate as a whole word,
	// e.g. "Category: greek".
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	var found []string
	for _, c := range candidates {
		lc := strings.ToLower(c)
		for _, w := range words {
			if w == lc {
				found = append(found, c)
				break
			}
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return s, false
}

// listMarker matches leading bullets and numbering such as "1.", "2)", "-", "•".
var listMarker = regexp.MustCompile(`^\s*(?:[-*•·]+|\d+[.)])\s*`)

// NormalizeTags cleans a tag answer into at most n comma-separated words and
// returns the joined tags together with the number of tags the model
// actually produced before truncation.
func NormalizeTags(raw string, n int) (string, int) {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	seen := make(map[string]bool, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = listMarker.ReplaceAllString(p, "")
		p = strings.Trim(strings.TrimSpace(p), edgeJunk)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, p)
	}
	got := len(tags)
	if n > 0 && len(tags) > n {
		tags = tags[:n]
	}
	return strings.Join(tags, ", "), got
}
