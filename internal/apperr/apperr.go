// Package apperr defines the error kinds surfaced by the docqa pipeline.
// Every stage either completes or returns an *Error carrying one of the
// kinds below, so the transport layer can map failures to a status code
// and a stable, machine-readable kind without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindExtraction means the upload could not be turned into text.
	KindExtraction Kind = "ExtractionError"
	// KindEmbeddingService means the embedding provider failed.
	KindEmbeddingService Kind = "EmbeddingServiceError"
	// KindDimensionMismatch means a vector had the wrong length.
	KindDimensionMismatch Kind = "DimensionMismatchError"
	// KindIndexBuild means the vector index could not be (re)built.
	KindIndexBuild Kind = "IndexBuildError"
	// KindIndexNotFound means a search targeted a name that was never built.
	KindIndexNotFound Kind = "IndexNotFoundError"
	// KindGeneration means the LLM failed or the stream was interrupted.
	KindGeneration Kind = "GenerationError"
	// KindContextTooLarge means the prompt exceeds the model context budget.
	KindContextTooLarge Kind = "ContextTooLargeError"
	// KindInvalidRequest means the caller supplied malformed input.
	KindInvalidRequest Kind = "InvalidRequestError"
	// KindInternal is used for failures that carry no pipeline kind.
	KindInternal Kind = "InternalError"
)

// Error is a pipeline failure of a specific Kind.
type Error struct {
	// Kind is the failure classification.
	Kind Kind
	// Op names the operation that failed (e.g. "embedder: embed").
	Op string
	// Stage is the pipeline stage active when the error was raised.
	// Set by the orchestrator; empty for errors raised outside a pipeline.
	Stage string
	// Step names the sub-step for multi-generation modes ("summary", "tags").
	Step string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, apperr.ErrIndexNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinel values for errors.Is comparisons.
var (
	ErrExtraction        = &Error{Kind: KindExtraction}
	ErrEmbeddingService  = &Error{Kind: KindEmbeddingService}
	ErrDimensionMismatch = &Error{Kind: KindDimensionMismatch}
	ErrIndexBuild        = &Error{Kind: KindIndexBuild}
	ErrIndexNotFound     = &Error{Kind: KindIndexNotFound}
	ErrGeneration        = &Error{Kind: KindGeneration}
	ErrContextTooLarge   = &Error{Kind: KindContextTooLarge}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
)

// New returns an *Error of kind k for op with a formatted cause.
func New(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap returns an *Error of kind k for op wrapping err. If err already
// carries a pipeline kind it is returned unchanged so the originating kind
// survives propagation through higher stages.
func Wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}

// HTTPStatus maps a kind to the status code returned to HTTP callers.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindExtraction:
		return http.StatusUnprocessableEntity
	case KindContextTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindIndexNotFound:
		return http.StatusNotFound
	case KindEmbeddingService, KindGeneration, KindDimensionMismatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
