package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth attempt outcomes recorded by AuthAttemptsTotal
const (
	AuthOutcomeOK              = "ok"
	AuthOutcomeUnauthenticated = "unauthenticated"
	AuthOutcomeStoreError      = "store_unavailable"
	AuthOutcomeInternal        = "internal_error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization context metrics
	AuthAttemptsTotal     *prometheus.CounterVec
	ScopeResolutionsTotal *prometheus.CounterVec
	CookieWritesTotal     prometheus.Counter
	JITProvisionsTotal    *prometheus.CounterVec

	// Store metrics
	StoreQueryDuration *prometheus.HistogramVec
	StoreErrorsTotal   *prometheus.CounterVec

	// Invite metrics
	InviteAcceptsTotal *prometheus.CounterVec

	// Rate limit metrics
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Database pool metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pathway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_auth_attempts_total",
				Help: "Authorization context resolutions by outcome",
			},
			[]string{"outcome"},
		),
		ScopeResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_scope_resolutions_total",
				Help: "Tenant-scope resolutions by winning fallback tier",
			},
			[]string{"tier"},
		),
		CookieWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pathway_scope_cookie_writes_total",
				Help: "Active-scope cookie synchronizations",
			},
		),
		JITProvisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_jit_provisions_total",
				Help: "Just-in-time identity provisioning by outcome",
			},
			[]string{"outcome"},
		),
		StoreQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pathway_store_query_duration_seconds",
				Help:    "Identity/membership store query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_store_errors_total",
				Help: "Identity/membership store query errors",
			},
			[]string{"query"},
		),
		InviteAcceptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_invite_accepts_total",
				Help: "Invite acceptance attempts by result",
			},
			[]string{"result"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathway_ratelimit_rejections_total",
				Help: "Requests rejected by rate limiting",
			},
			[]string{"limiter"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pathway_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pathway_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.ScopeResolutionsTotal,
		m.CookieWritesTotal,
		m.JITProvisionsTotal,
		m.StoreQueryDuration,
		m.StoreErrorsTotal,
		m.InviteAcceptsTotal,
		m.RateLimitRejectionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// ObserveDBStats records connection pool gauges from sql.DBStats values
func (m *Metrics) ObserveDBStats(inUse, idle int) {
	m.DBConnectionsActive.Set(float64(inUse))
	m.DBConnectionsIdle.Set(float64(idle))
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
