package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics exposed by the server and worker.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	stageTransitions *prometheus.CounterVec
	allocations      *prometheus.CounterVec
	allocationRetry  *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procureflow_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "procureflow_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procureflow_stage_transitions_total",
		Help: "Completed workflow stages by sheet and stage index.",
	}, []string{"sheet", "stage"})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procureflow_sequence_allocations_total",
		Help: "Sequence numbers handed out per series.",
	}, []string{"series"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procureflow_sequence_claim_conflicts_total",
		Help: "Sequence claims lost to a concurrent writer.",
	}, []string{"series"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procureflow_jobs_total",
		Help: "Background jobs processed by type and outcome.",
	}, []string{"type", "status"})
	registry.MustRegister(requests, duration, transitions, allocations, retries, jobs)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		stageTransitions: transitions,
		allocations:      allocations,
		allocationRetry:  retries,
		jobsTotal:        jobs,
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordStageTransition counts one completed stage.
func (m *Metrics) RecordStageTransition(sheet string, stage int) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(sheet, strconv.Itoa(stage)).Inc()
}

// RecordSequenceAllocation counts one allocated number.
func (m *Metrics) RecordSequenceAllocation(series string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(series).Inc()
}

// RecordSequenceConflict counts a lost claim.
func (m *Metrics) RecordSequenceConflict(series string) {
	if m == nil {
		return
	}
	m.allocationRetry.WithLabelValues(series).Inc()
}

// RecordJob counts a processed background job.
func (m *Metrics) RecordJob(taskType string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobsTotal.WithLabelValues(taskType, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
