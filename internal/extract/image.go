package extract

import (
	"net/http"
	"slices"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// ImageTypes are the picture formats accepted for description.
var ImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// DetectImage sniffs u's content and returns its MIME type. The client's
// filename and content type are ignored. Anything that is not one of
// ImageTypes is an ExtractionError.
func DetectImage(u Upload) (string, error) {
	const op = "extract: image"
	if len(u.Data) == 0 {
		return "", apperr.New(apperr.KindExtraction, op, "upload %q is empty", u.Filename)
	}
	ct := http.DetectContentType(u.Data)
	if !slices.Contains(ImageTypes, ct) {
		return "", apperr.New(apperr.KindExtraction, op, "upload %q is %s, not a supported image", u.Filename, ct)
	}
	return ct, nil
}
