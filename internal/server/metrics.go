package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/docqa-go/internal/pipeline"
)

// labelHandler is the "handler" label value used to partition metrics by
// the logical endpoint name rather than the raw URL path.
const labelHandler = "handler"

// Metrics holds all Prometheus collectors owned by the server. It also
// implements pipeline.Observer, so the same instance is handed to
// pipeline.New and to the server Config.
type Metrics struct {
	// requestsTotal counts finished pipeline requests by mode and outcome
	// ("success", "partial" or the error kind).
	requestsTotal *prometheus.CounterVec

	// stageDuration records how long each pipeline stage ran.
	stageDuration *prometheus.HistogramVec

	// activeStreams is the number of SSE streams currently open.
	activeStreams prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers all collectors against reg. promauto.With(reg)
// registers into the provided registry rather than the global default,
// which keeps unit tests hermetic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total number of pipeline requests completed, partitioned by mode and outcome.",
		}, []string{"mode", "outcome"}),

		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode", "stage"}),

		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "active_streams",
			Help:      "Number of SSE token streams currently open.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"method", labelHandler}),
	}
}

// ObserveStage implements pipeline.Observer.
func (m *Metrics) ObserveStage(mode pipeline.Mode, stage pipeline.Stage, d time.Duration) {
	m.stageDuration.WithLabelValues(string(mode), string(stage)).Observe(d.Seconds())
}

// ObserveRequest implements pipeline.Observer.
func (m *Metrics) ObserveRequest(mode pipeline.Mode, outcome string) {
	m.requestsTotal.WithLabelValues(string(mode), outcome).Inc()
}

// instrument records request count and latency for the named handler.
func (m *Metrics) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}
		start := time.Now()
		next.ServeHTTP(rw, r)
		m.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
	})
}

var _ pipeline.Observer = (*Metrics)(nil)
