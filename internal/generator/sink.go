package generator

import (
	"context"
	"fmt"
	"io"
)

// Token is one element of a generation stream. Final marks the end of a
// successful stream and carries no text.
type Token struct {
	Text  string
	Final bool

	// Step names the orchestrator step that produced the token when a
	// request runs more than one generation; empty otherwise.
	Step string
}

// Sink receives tokens as they are produced. A non-nil error from Emit stops
// generation.
type Sink interface {
	Emit(ctx context.Context, tok Token) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, tok Token) error

// Emit calls f(ctx, tok).
func (f SinkFunc) Emit(ctx context.Context, tok Token) error { return f(ctx, tok) }

// Discard is a Sink that drops every token.
var Discard Sink = SinkFunc(func(context.Context, Token) error { return nil })

// WriterSink writes token text to w, and a newline after the final token.
type WriterSink struct {
	W io.Writer
}

// Emit implements Sink.
func (s WriterSink) Emit(_ context.Context, tok Token) error {
	if tok.Final {
		_, err := io.WriteString(s.W, "\n")
		return err
	}
	if _, err := io.WriteString(s.W, tok.Text); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
