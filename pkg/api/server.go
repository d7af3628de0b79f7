package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

// Options configures a Server. Services, Recorder and Tokens are required.
type Options struct {
	Services *tracker.Services
	Recorder *audit.Recorder
	Tokens   *auth.TokenService

	// LoginLimiter throttles POST /api/login per client IP. Nil disables it.
	LoginLimiter middleware.Limiter
	// TrustedProxies may set the client IP through X-Forwarded-For
	TrustedProxies *httputil.TrustedProxies

	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Health   *observability.HealthChecker

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	CookieSecure   bool
	ServiceName    string
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	services *tracker.Services
	recorder *audit.Recorder
	guard    *middleware.Guard
	limiter  *middleware.RateLimitMiddleware
	opts     Options
}

// NewServer creates a new API server with all routes registered
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewNopMetrics()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "taskhub"
	}

	s := &Server{
		router:   mux.NewRouter(),
		services: opts.Services,
		recorder: opts.Recorder,
		guard:    middleware.NewGuard(opts.Tokens),
		opts:     opts,
	}
	if opts.LoginLimiter != nil {
		s.limiter = middleware.NewRateLimitMiddleware(opts.LoginLimiter, opts.Metrics)
		s.limiter.SetTrustedProxies(opts.TrustedProxies)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(observability.RouteTemplateMiddleware)

	if s.opts.Health != nil {
		observability.RegisterHealthRoutes(s.router, s.opts.Health)
	}
	if s.opts.Gatherer != nil {
		observability.RegisterMetricsEndpoint(s.router, s.opts.Gatherer)
	}

	api := s.router.PathPrefix("/api").Subrouter()

	// Sessions
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.Handle("/login", s.throttle(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)
	api.Handle("/logout", s.guard.HandlerFunc(s.logout)).Methods(http.MethodPost)

	// Projects
	api.Handle("/projects", s.guard.HandlerFunc(s.listProjects)).Methods(http.MethodGet)
	api.Handle("/projects", s.guard.HandlerFunc(s.createProject)).Methods(http.MethodPost)
	api.Handle("/projects/{id}", s.guard.HandlerFunc(s.getProject)).Methods(http.MethodGet)
	api.Handle("/projects/{id}", s.guard.HandlerFunc(s.updateProject)).Methods(http.MethodPut)

	// Tasks; stats is registered before {id} so it is not captured as an id
	api.Handle("/tasks", s.guard.HandlerFunc(s.listTasks)).Methods(http.MethodGet)
	api.Handle("/tasks", s.guard.HandlerFunc(s.createTask)).Methods(http.MethodPost)
	api.Handle("/tasks/stats", s.guard.HandlerFunc(s.taskStats)).Methods(http.MethodGet)
	api.Handle("/tasks/{id}", s.guard.HandlerFunc(s.getTask)).Methods(http.MethodGet)
	api.Handle("/tasks/{id}", s.guard.HandlerFunc(s.updateTask)).Methods(http.MethodPut)
	api.Handle("/tasks/{id}/status", s.guard.HandlerFunc(s.updateTaskStatus)).Methods(http.MethodPatch)

	// Users
	api.Handle("/users", s.guard.HandlerFunc(s.listUsers)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.guard.HandlerFunc(s.getUser)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.guard.HandlerFunc(s.updateUser)).Methods(http.MethodPut)

	// Activity
	api.Handle("/activity", s.guard.HandlerFunc(s.listActivity)).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMessage(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Handler(next)
}

// ServeHTTP implements http.Handler on the bare router
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the full middleware chain and
// OpenTelemetry instrumentation. This is what the HTTP server should serve.
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.LoggerMiddleware(s.opts.Logger),
		httputil.RequestIDMiddleware,
		httputil.TimeoutMiddleware(s.opts.RequestTimeout),
		httputil.LoggingMiddleware,
		observability.HTTPMetricsMiddleware(s.opts.Metrics),
		httputil.CORSMiddleware(s.opts.AllowedOrigins),
		httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)
	return otelhttp.NewHandler(chain(s.router), s.opts.ServiceName)
}
