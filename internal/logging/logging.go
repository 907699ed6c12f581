// Package logging provides the structured logger shared by the server, the
// CLI and the pipeline. It is configured once at startup via [New] and
// distributed through context values using [WithLogger] / [FromContext].
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// Options configures a logger.
type Options struct {
	// Level is the minimum severity written.
	Level slog.Level
	// Format is "json" or "text". Anything else means json.
	Format string
	// Output receives log records. Defaults to os.Stderr so stdout stays free
	// for command results.
	Output io.Writer
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FORMAT.
func OptionsFromEnv() Options {
	return Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: strings.ToLower(os.Getenv("LOG_FORMAT")),
	}
}

// New constructs a [*slog.Logger] from environment variables.
func New() *slog.Logger {
	return NewWithOptions(OptionsFromEnv())
}

// NewWithOptions constructs a [*slog.Logger] from opts. Debug loggers also
// record the source position of each call.
func NewWithOptions(opts Options) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(w, hopts)
	} else {
		handler = slog.NewJSONHandler(w, hopts)
	}
	return slog.New(handler)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// With returns a copy of ctx whose logger carries the extra attributes.
func With(ctx context.Context, attrs ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(attrs...))
}

// FromContext returns the [*slog.Logger] stored in ctx.
// If no logger is present it returns [slog.Default] so callers never
// need to nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ParseLevel converts a string to a [slog.Level], defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
