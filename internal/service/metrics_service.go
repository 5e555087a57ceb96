package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// pipeline and the HTTP surface.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	generationDuration prometheus.Observer
	generationRuns     *prometheus.CounterVec
	conflictsDetected  *prometheus.CounterVec
	leaveTransitions   *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
	runCount       uint64
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall-clock duration of timetable generation runs",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	generationRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generation_runs_total",
		Help: "Total timetable generation runs by outcome",
	}, []string{"status"})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Total conflicts found by detection scans",
	}, []string{"conflict_type"})

	leaveTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faculty_leave_transitions_total",
		Help: "Leave workflow transitions by target status",
	}, []string{"status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, generationRuns,
		conflictsDetected, leaveTransitions, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		generationRuns:     generationRuns,
		conflictsDetected:  conflictsDetected,
		leaveTransitions:   leaveTransitions,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGeneration records the outcome and duration of one generation run.
func (m *MetricsService) ObserveGeneration(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationRuns.WithLabelValues(status).Inc()
	m.generationDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.runCount, 1)
}

// RecordConflicts counts detected conflicts by type.
func (m *MetricsService) RecordConflicts(conflictType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflictsDetected.WithLabelValues(conflictType).Add(float64(count))
}

// RecordLeaveTransition counts a leave workflow transition.
func (m *MetricsService) RecordLeaveTransition(status string) {
	if m == nil {
		return
	}
	m.leaveTransitions.WithLabelValues(status).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
}
