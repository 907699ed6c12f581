package extract

import (
	"errors"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
)

func TestDetectImage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", "image/png", false},
		{"jpeg", "\xff\xd8\xff\xe0\x00\x10JFIF", "image/jpeg", false},
		{"gif", "GIF89a\x01\x00\x01\x00", "image/gif", false},
		{"webp", "RIFF\x00\x00\x00\x00WEBPVP8 ", "image/webp", false},
		{"pdf is not an image", "%PDF-1.4\n", "", true},
		{"text is not an image", "hello world", "", true},
		{"empty", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectImage(Upload{Filename: "picture.png", Data: []byte(tc.data)})
			if tc.wantErr {
				if !errors.Is(err, apperr.ErrExtraction) {
					t.Fatalf("error = %v, want ExtractionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectImage: %v", err)
			}
			if got != tc.want {
				t.Errorf("type = %q, want %q", got, tc.want)
			}
		})
	}
}
