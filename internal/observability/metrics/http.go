package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "egodata"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal     *prometheus.CounterVec
	searchResults   *prometheus.HistogramVec
	searchGroups    *prometheus.HistogramVec
	searchDuration  *prometheus.HistogramVec
	exportTotal     *prometheus.CounterVec
	exportBytes     *prometheus.HistogramVec
	exportFiles     *prometheus.HistogramVec
	submissionTotal *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total searches by mode and outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "raw_results",
			Help:      "Raw results returned per successful search.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"service", "mode"},
	)
	searchGroups := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "groups",
			Help:      "Grouped results per successful search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"service", "mode"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	exportTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "bundles_total",
			Help:      "Total bundle exports by status.",
		},
		[]string{"service", "status"},
	)
	exportBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "archive_bytes",
			Help:      "Size of produced archives in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 8),
		},
		[]string{"service"},
	)
	exportFiles := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "archive_files",
			Help:      "Files per produced archive.",
			Buckets:   []float64{2, 4, 10, 20, 50, 100},
		},
		[]string{"service"},
	)
	submissionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forms",
			Name:      "submissions_total",
			Help:      "Accepted or rejected form submissions by kind.",
		},
		[]string{"service", "kind", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 when the circuit breaker of an operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchResults,
		searchGroups,
		searchDuration,
		exportTotal,
		exportBytes,
		exportFiles,
		submissionTotal,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		searchTotal:     searchTotal,
		searchResults:   searchResults,
		searchGroups:    searchGroups,
		searchDuration:  searchDuration,
		exportTotal:     exportTotal,
		exportBytes:     exportBytes,
		exportFiles:     exportFiles,
		submissionTotal: submissionTotal,
		breakerState:    breakerState,
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

// normalizePath keeps label cardinality bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	case strings.HasPrefix(path, "/v1/"), path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, mode string, rawCount, groupCount int, duration time.Duration, err error) {
	if mode == "" {
		mode = "unknown"
	}
	m.searchDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	if err != nil {
		m.searchTotal.WithLabelValues(service, mode, "error").Inc()
		return
	}
	outcome := "hit"
	if rawCount == 0 {
		outcome = "empty"
	}
	m.searchTotal.WithLabelValues(service, mode, outcome).Inc()
	m.searchResults.WithLabelValues(service, mode).Observe(float64(rawCount))
	m.searchGroups.WithLabelValues(service, mode).Observe(float64(groupCount))
}

func (m *HTTPServerMetrics) RecordExport(service string, files int, archiveBytes int, err error) {
	if err != nil {
		m.exportTotal.WithLabelValues(service, "error").Inc()
		return
	}
	m.exportTotal.WithLabelValues(service, "success").Inc()
	m.exportBytes.WithLabelValues(service).Observe(float64(archiveBytes))
	m.exportFiles.WithLabelValues(service).Observe(float64(files))
}

func (m *HTTPServerMetrics) RecordSubmission(service, kind string, err error) {
	status := "accepted"
	if err != nil {
		status = "rejected"
	}
	m.submissionTotal.WithLabelValues(service, kind, status).Inc()
}

// BreakerObserver adapts the gauge to the resilience state callback.
func (m *HTTPServerMetrics) BreakerObserver(service string) func(operation, state string) {
	return func(operation, state string) {
		value := 0.0
		if state != "closed" {
			value = 1
		}
		m.breakerState.WithLabelValues(service, operation).Set(value)
	}
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

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
