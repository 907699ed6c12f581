// Package extract turns uploaded documents into plain UTF-8 text.
//
// Supported formats are PDF, DOCX, XLSX, Markdown and plain text. The format
// is chosen from the file extension and, failing that, by sniffing the
// content. Every failure is reported as an ExtractionError; an upload that
// yields only whitespace is a failure, never an empty success.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// Format identifies a supported document type.
type Format string

const (
	// FormatPDF is a Portable Document Format file.
	FormatPDF Format = "pdf"
	// FormatDOCX is an Office Open XML word-processing document.
	FormatDOCX Format = "docx"
	// FormatXLSX is an Office Open XML workbook; each sheet is one page.
	FormatXLSX Format = "xlsx"
	// FormatMarkdown is CommonMark text; only the rendered text is kept.
	FormatMarkdown Format = "markdown"
	// FormatText is plain UTF-8 text.
	FormatText Format = "text"
)

// Upload is a document as received from a caller.
type Upload struct {
	// Filename is the client-supplied name; only its extension is used.
	Filename string
	// ContentType is the client-supplied MIME type, if any.
	ContentType string
	// Data is the raw document.
	Data []byte
}

// Text is the result of extraction.
type Text struct {
	// Content is every page concatenated in document order with no
	// separator, so an empty page contributes nothing.
	Content string
	// Pages holds the per-page text; pages without text are empty strings.
	Pages []string
	// Format is the detected document format.
	Format Format
}

// Extractor converts uploads to text. The zero value is ready to use and
// safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor { return &Extractor{} }

// Extract detects u's format and returns its text.
func (e *Extractor) Extract(ctx context.Context, u Upload) (Text, error) {
	const op = "extract"
	if err := ctx.Err(); err != nil {
		return Text{}, apperr.Wrap(apperr.KindExtraction, op, err)
	}
	if len(u.Data) == 0 {
		return Text{}, apperr.New(apperr.KindExtraction, op, "upload %q is empty", u.Filename)
	}

	format, err := Detect(u)
	if err != nil {
		return Text{}, err
	}

	pages, err := safely(format, parsers[format], u.Data)
	if err != nil {
		return Text{}, apperr.Wrap(apperr.KindExtraction, op+": "+string(format), err)
	}

	content := strings.Join(pages, "")
	if strings.TrimSpace(content) == "" {
		return Text{}, apperr.New(apperr.KindExtraction, op+": "+string(format), "document %q contains no extractable text", u.Filename)
	}
	return Text{Content: content, Pages: pages, Format: format}, nil
}

// parsers maps each format to the function that renders its pages.
var parsers = map[Format]func([]byte) ([]string, error){
	FormatPDF:      extractPDF,
	FormatDOCX:     extractDOCX,
	FormatXLSX:     extractXLSX,
	FormatMarkdown: extractMarkdown,
	FormatText:     extractText,
}

// safely runs parse, converting panics from third-party parsers on
// malformed input into errors.
func safely(format Format, parse func([]byte) ([]string, error), data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed %s document: %v", format, r)
		}
	}()
	return parse(data)
}

// Detect chooses the format for u: by extension first, then by content.
func Detect(u Upload) (Format, error) {
	switch strings.ToLower(filepath.Ext(u.Filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".txt", ".text", ".csv", ".log":
		return FormatText, nil
	}

	if bytes.HasPrefix(u.Data, []byte("%PDF-")) {
		return FormatPDF, nil
	}
	if bytes.HasPrefix(u.Data, []byte("PK\x03\x04")) {
		if f, ok := sniffOOXML(u.Data); ok {
			return f, nil
		}
	}
	if strings.HasPrefix(u.ContentType, "text/markdown") {
		return FormatMarkdown, nil
	}
	if ct := http.DetectContentType(u.Data); strings.HasPrefix(ct, "text/plain") {
		return FormatText, nil
	}
	return "", apperr.New(apperr.KindExtraction, "extract", "unsupported document format for %q", u.Filename)
}

// sniffOOXML tells DOCX and XLSX apart by their main part.
func sniffOOXML(data []byte) (Format, bool) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false
	}
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			return FormatDOCX, true
		case "xl/workbook.xml":
			return FormatXLSX, true
		}
	}
	return "", false
}
