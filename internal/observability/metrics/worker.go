package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	forwardTotal    *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	forwardInFlight prometheus.Gauge
	requeuedTotal   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	forwardTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "submission_forward_total",
			Help:      "Total forwarded submissions by status.",
		},
		[]string{"service", "status"},
	)
	forwardDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "submission_forward_duration_seconds",
			Help:      "Submission forwarding duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	forwardInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "submission_forward_in_flight",
			Help:      "Number of submissions being forwarded.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	requeuedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "submission_requeued_total",
			Help:      "Stale submissions published again at startup.",
		},
		[]string{"service"},
	)

	registry.MustRegister(forwardTotal, forwardDuration, forwardInFlight, requeuedTotal)

	return &WorkerMetrics{
		registry:        registry,
		forwardTotal:    forwardTotal,
		forwardDuration: forwardDuration,
		forwardInFlight: forwardInFlight,
		requeuedTotal:   requeuedTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSubmission() {
	m.forwardInFlight.Inc()
}

func (m *WorkerMetrics) FinishSubmission(service string, duration time.Duration, err error) {
	m.forwardInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.forwardTotal.WithLabelValues(service, status).Inc()
	m.forwardDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordRequeued(service string, count int) {
	if count <= 0 {
		return
	}
	m.requeuedTotal.WithLabelValues(service).Add(float64(count))
}
