package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// server exposing the document endpoints.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP server",
		Long: `Start the docqa HTTP server.

Endpoints (multipart upload in field "file"):
  POST /classify?termList=a,b   pick one category for the document
  POST /prompt?prompt=...       answer a question about the document
  POST /summary                 summarize and tag the document

Add ?stream=true or "Accept: text/event-stream" to receive tokens as
Server-Sent Events. GET /api/health, /api/ready and /metrics serve
liveness, readiness and Prometheus metrics.

Examples:
  docqa serve
  docqa serve --port 9090
  INDEX_BACKEND=qdrant MODEL_PROVIDER=azure docqa serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// YAML config is applied in PersistentPreRunE, after flag
			// defaults were computed, so env is consulted again here.
			if !cmd.Flags().Changed("host") {
				host = envOr("DOCQA_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = envIntOr("DOCQA_PORT", port)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			flush, ok := tracing.Setup()
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)
			a, err := buildApp(ctx, log, metrics)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("serve: closing index", slog.Any("error", err))
				}
			}()

			srv, err := server.New(a.pipeline, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        a.pingers(),
				APIKey:         envOr("DOCQA_API_KEY", ""),
				MaxUploadBytes: config.MaxUploadBytes(),
				Metrics:        metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env DOCQA_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env DOCQA_PORT)")

	return cmd
}
