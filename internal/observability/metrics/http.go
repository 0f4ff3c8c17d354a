package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal        *prometheus.CounterVec
	queryNoResults    *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	retrievalStepUsed *prometheus.CounterVec
	queryCitations    *prometheus.HistogramVec
	groundedness      *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ccp",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered compliance queries.",
		},
		[]string{"service"},
	)
	queryNoResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "query",
			Name:      "no_results_total",
			Help:      "Total queries short-circuited with no retrieved context.",
		},
		[]string{"service"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccp",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievalStepUsed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ccp",
			Subsystem: "query",
			Name:      "retrieval_step_used_total",
			Help:      "Which retrieval fallback step produced the candidates.",
		},
		[]string{"service", "step"},
	)
	queryCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccp",
			Subsystem: "query",
			Name:      "citations",
			Help:      "Distribution of citations returned per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
		[]string{"service"},
	)
	groundedness := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ccp",
			Subsystem: "query",
			Name:      "groundedness",
			Help:      "Distribution of per-answer groundedness scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryNoResults,
		queryDuration,
		retrievalStepUsed,
		queryCitations,
		groundedness,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		queryTotal:        queryTotal,
		queryNoResults:    queryNoResults,
		queryDuration:     queryDuration,
		retrievalStepUsed: retrievalStepUsed,
		queryCitations:    queryCitations,
		groundedness:      groundedness,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/documents/"):
		return "/api/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(service string, citations int, groundedness float64, duration time.Duration) {
	m.queryDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.queryCitations.WithLabelValues(service).Observe(float64(citations))
	if citations == 0 {
		m.queryNoResults.WithLabelValues(service).Inc()
		return
	}
	m.queryTotal.WithLabelValues(service).Inc()
	m.groundedness.WithLabelValues(service).Observe(groundedness)
}

func (m *HTTPServerMetrics) RecordRetrievalStep(service, step string) {
	if step == "" {
		step = "unknown"
	}
	m.retrievalStepUsed.WithLabelValues(service, step).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
