package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{"äöüßäöüß", 2}, // runes, not bytes
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		nil,
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	// nil entries are skipped.
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_Fits(t *testing.T) {
	t.Parallel()
	small := []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("question")}
	if n, ok := Fits(small, 100); !ok || n == 0 {
		t.Errorf("Fits(small, 100) = %d, %v; want >0, true", n, ok)
	}

	large := []*schema.Message{schema.UserMessage(strings.Repeat("x", 4*7000))}
	if n, ok := Fits(large, 6000); ok {
		t.Errorf("Fits(large, 6000) = %d, true; want false", n)
	}
	if _, ok := Fits(large, 0); ok {
		t.Error("zero budget should fall back to DefaultMaxContextTokens and still reject ~7000 tokens")
	}
	if _, ok := Fits(large, 8000); !ok {
		t.Error("~7000 tokens should fit in 8000")
	}
}
