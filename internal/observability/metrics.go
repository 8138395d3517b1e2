package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// Metrics holds all Prometheus instruments of the console. A nil *Metrics is
// valid and records nothing, so library packages can take one optionally.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendRetriesTotal        prometheus.Counter

	QueryCacheHitsTotal      *prometheus.CounterVec
	QueryCacheMissesTotal    *prometheus.CounterVec
	QueryCacheInvalidations  *prometheus.CounterVec
	RoleConfigFallbacksTotal prometheus.Counter

	ListResponsesDiscarded *prometheus.CounterVec
	KanbanDropsTotal       *prometheus.CounterVec
	EditSavesTotal         *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_http_requests_total",
			Help: "Total number of BFF HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crmconsole_http_request_duration_seconds",
			Help:    "BFF HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_api_requests_total",
			Help: "Total number of CRM API requests.",
		}, []string{"method", "resource", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crmconsole_api_request_duration_seconds",
			Help:    "CRM API request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"method", "resource"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmconsole_api_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crmconsole_api_retries_total",
			Help: "Total number of retried CRM API reads.",
		}),

		QueryCacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_query_cache_hits_total",
			Help: "Total request cache hits.",
		}, []string{"resource"}),
		QueryCacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_query_cache_misses_total",
			Help: "Total request cache misses.",
		}, []string{"resource"}),
		QueryCacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_query_cache_invalidations_total",
			Help: "Total request cache invalidations by tag.",
		}, []string{"tag"}),
		RoleConfigFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crmconsole_role_config_fallbacks_total",
			Help: "Times the static role policy was used because /config/roles failed.",
		}),

		ListResponsesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_list_responses_discarded_total",
			Help: "List responses dropped because the view state moved on.",
		}, []string{"resource"}),
		KanbanDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_kanban_drops_total",
			Help: "Kanban drops by outcome (moved, noop, rejected, failed).",
		}, []string{"resource", "outcome"}),
		EditSavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crmconsole_edit_saves_total",
			Help: "Detail edits by outcome (changed, noop, failed).",
		}, []string{"resource", "outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		m.QueryCacheHitsTotal,
		m.QueryCacheMissesTotal,
		m.QueryCacheInvalidations,
		m.RoleConfigFallbacksTotal,
		m.ListResponsesDiscarded,
		m.KanbanDropsTotal,
		m.EditSavesTotal,
	)

	return m
}

// RecordHTTPRequest records BFF request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// RecordBackendRequest records a CRM API request. Status 0 means no response.
func (m *Metrics) RecordBackendRequest(method, resource string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(method, resource, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(method, resource).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the breaker gauge (0=closed, 1=half-open, 2=open).
func (m *Metrics) SetBackendCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.BackendCircuitBreakerState.Set(state)
}

// RecordBackendRetry records a retried read.
func (m *Metrics) RecordBackendRetry() {
	if m == nil {
		return
	}
	m.BackendRetriesTotal.Inc()
}

// RecordQueryCacheHit records a request cache hit.
func (m *Metrics) RecordQueryCacheHit(resource string) {
	if m == nil {
		return
	}
	m.QueryCacheHitsTotal.WithLabelValues(resource).Inc()
}

// RecordQueryCacheMiss records a request cache miss.
func (m *Metrics) RecordQueryCacheMiss(resource string) {
	if m == nil {
		return
	}
	m.QueryCacheMissesTotal.WithLabelValues(resource).Inc()
}

// RecordQueryCacheInvalidation records an invalidation by tag.
func (m *Metrics) RecordQueryCacheInvalidation(tag string) {
	if m == nil {
		return
	}
	m.QueryCacheInvalidations.WithLabelValues(tag).Inc()
}

// RecordRoleConfigFallback records a fall back to the static role policy.
func (m *Metrics) RecordRoleConfigFallback() {
	if m == nil {
		return
	}
	m.RoleConfigFallbacksTotal.Inc()
}

// RecordListResponseDiscarded records a stale list response being dropped.
func (m *Metrics) RecordListResponseDiscarded(resource string) {
	if m == nil {
		return
	}
	m.ListResponsesDiscarded.WithLabelValues(resource).Inc()
}

// RecordKanbanDrop records a kanban drop outcome.
func (m *Metrics) RecordKanbanDrop(resource, outcome string) {
	if m == nil {
		return
	}
	m.KanbanDropsTotal.WithLabelValues(resource, outcome).Inc()
}

// RecordEditSave records a detail edit outcome.
func (m *Metrics) RecordEditSave(resource, outcome string) {
	if m == nil {
		return
	}
	m.EditSavesTotal.WithLabelValues(resource, outcome).Inc()
}

// MetricsMiddleware records request metrics using chi's route pattern rather
// than the raw path to keep label cardinality bounded.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.ReplaceAll(pattern, "/*/", "/")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// statusWriter wraps http.ResponseWriter to capture the status code. Shared
// by the metrics and tracing middleware.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush lets streamed exports pass through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
