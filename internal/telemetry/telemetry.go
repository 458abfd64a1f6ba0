// Package telemetry exposes Prometheus metrics for the harvest pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	figuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_figures_total",
			Help: "Figures processed, labeled by final status.",
		},
		[]string{"status"},
	)

	slotsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_slots_resolved_total",
			Help: "Slots resolved, labeled by slot and winning source (fallback included).",
		},
		[]string{"slot", "source"},
	)

	candidatesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_candidates_rejected_total",
			Help: "Candidates discarded during validation/dedup, labeled by reason.",
		},
		[]string{"reason"},
	)

	sourceSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_source_searches_total",
			Help: "Adapter search calls, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	storeRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_store_retries_total",
			Help: "Coverage store upsert retries.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_rate_limit_delay_seconds",
			Help:    "Time spent waiting on per-source rate limiters.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvest_active_workers",
			Help: "Workers currently processing a figure.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Ops server requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware recording ops server request counts.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)
		if rc := chi.RouteContext(r.Context()); rc != nil {
			httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.statusCode)).Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveFigure records a figure's final status ("ok" or "failed").
func ObserveFigure(status string) {
	figuresTotal.WithLabelValues(status).Inc()
}

// ObserveSlotResolved records which source won a slot.
func ObserveSlotResolved(slot, source string) {
	slotsResolvedTotal.WithLabelValues(slot, source).Inc()
}

// ObserveRejection records a discarded candidate.
func ObserveRejection(reason string) {
	candidatesRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveSearch records one adapter call ("hit", "empty", or "error").
func ObserveSearch(source, outcome string) {
	sourceSearchesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveStoreRetry records one upsert retry.
func ObserveStoreRetry() {
	storeRetriesTotal.Inc()
}

// ObserveRateLimitDelay records how long a worker waited for a source slot.
func ObserveRateLimitDelay(source string, d time.Duration) {
	if d > time.Millisecond {
		rateLimitDelaySeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncActiveWorkers increments the active worker gauge.
func IncActiveWorkers() { activeWorkers.Inc() }

// DecActiveWorkers decrements the active worker gauge.
func DecActiveWorkers() { activeWorkers.Dec() }
