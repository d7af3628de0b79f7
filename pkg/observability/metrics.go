package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector taskhub exports
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	LoginAttemptsTotal *prometheus.CounterVec
	PolicyDenialsTotal *prometheus.CounterVec
	RateLimitedTotal   prometheus.Counter

	// Side effect metrics
	ActivityWriteFailuresTotal prometheus.Counter
	BroadcastEventsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Business metrics
	UsersTotal    prometheus.Gauge
	ProjectsTotal prometheus.Gauge
	TasksTotal    prometheus.Gauge
}

const namespace = "taskhub"

// NewMetrics creates every collector and registers it on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	f := promauto.With(registry)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Metrics{
		HTTPRequestsTotal: counterVec("http_requests_total", "HTTP requests served", "method", "path", "status"),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPResponseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path"}),

		LoginAttemptsTotal: counterVec("login_attempts_total", "Login attempts by outcome", "status"),
		PolicyDenialsTotal: counterVec("policy_denials_total", "Requests denied by the access policy", "operation"),
		RateLimitedTotal:   counter("rate_limited_total", "Requests rejected by the rate limiter"),

		ActivityWriteFailuresTotal: counter("activity_write_failures_total", "Activity entries that could not be stored"),
		BroadcastEventsTotal:       counterVec("broadcast_events_total", "Change event deliveries per sink", "event", "sink", "status"),

		CacheHitsTotal:   counterVec("cache_hits_total", "Cache hits", "cache_type"),
		CacheMissesTotal: counterVec("cache_misses_total", "Cache misses", "cache_type"),

		UsersTotal:    gauge("users_total", "Registered users"),
		ProjectsTotal: gauge("projects_total", "Projects"),
		TasksTotal:    gauge("tasks_total", "Tasks"),
	}
}

// NewNopMetrics returns metrics registered against a throwaway registry, for
// tests and tools that do not expose /metrics.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

type sizeRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *sizeRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *sizeRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

type routeSlotKey struct{}

// RouteTemplateMiddleware reports the matched mux path template back to an
// HTTPMetricsMiddleware wrapping the router
func RouteTemplateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(routeSlotKey{}).(*string); ok {
			*slot = routeLabel(r)
		}
		next.ServeHTTP(w, r)
	})
}

// routeLabel returns the mux path template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware counts and times requests per route template. Placed
// outside the router it also sees 404 and 405 responses, labelled
// "unmatched"; the router then needs RouteTemplateMiddleware for the others.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			slot := new(string)
			rec := &sizeRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeSlotKey{}, slot)))

			route := *slot
			if route == "" {
				route = routeLabel(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rec.size))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
