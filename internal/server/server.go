// Package server exposes the document pipeline over HTTP. Each document
// endpoint takes a multipart upload, runs one pipeline mode and answers
// with JSON, or with a Server-Sent Events stream of tokens followed by the
// JSON result. The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docqa-go/internal/logging"
)

// defaultMaxUploadBytes bounds uploads when Config.MaxUploadBytes is zero.
const defaultMaxUploadBytes = 32 << 20

// New constructs a Server around runner, which is normally a
// *pipeline.Pipeline.
func New(runner documentRunner, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("server: runner must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)

	s := &Server{
		runner:  runner,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: cfg.Metrics,
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: DOCQA_API_KEY is not set, document endpoints are unauthenticated")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop

	// protect wraps a document endpoint with auth, rate limiting and
	// per-handler metrics, in that order.
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.metrics.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /classify", protect("classify", s.handleClassify))
	mux.Handle("POST /prompt", protect("prompt", s.handlePrompt))
	mux.Handle("POST /summary", protect("summary", s.handleSummary))
	mux.Handle("POST /describe", protect("describe", s.handleDescribe))
	mux.Handle("GET /api/health", s.metrics.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.metrics.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /api/version", s.metrics.instrument("version", http.HandlerFunc(s.handleVersion)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(s.log, cors(mux))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// applyDefaults fills the zero fields of cfg.
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for a summarize stream, which runs
		// two generations back to back.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.MetricsRegistry)
	}
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server: stopped")
		return nil
	}
}
