package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request, upload
	// included.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on the document
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on the document endpoints.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MaxUploadBytes caps the multipart request body. Defaults to 32 MiB.
	MaxUploadBytes int64
	// Metrics receives HTTP and pipeline telemetry. If nil, a fresh set is
	// registered against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where a default Metrics registers.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// documentRunner is the set of pipeline operations the document handlers
// call. *pipeline.Pipeline satisfies it; tests inject a fake.
type documentRunner interface {
	Classify(ctx context.Context, u extract.Upload, terms []string, sink generator.Sink) (pipeline.ClassifyResult, error)
	Prompt(ctx context.Context, u extract.Upload, question string, sink generator.Sink) (pipeline.PromptResult, error)
	Summarize(ctx context.Context, u extract.Upload, sink generator.Sink) (pipeline.SummaryResult, error)
	Describe(ctx context.Context, u extract.Upload, sink generator.Sink) (pipeline.DescribeResult, error)
}

// Server is the HTTP server that exposes the document pipeline.
type Server struct {
	// runner executes document requests.
	runner documentRunner
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped root handler.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// runFunc executes one document mode. It returns a non-nil result only when
// there is something worth sending to the client, which for summarize
// includes a partial result next to an error.
type runFunc func(ctx context.Context, u extract.Upload, sink generator.Sink) (any, error)
