// Package observability provides structured logging, Prometheus metrics,
// health checks, graceful shutdown and OpenTelemetry setup for taskhub.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("task_id", id).Info("task updated")
//
// Request-scoped logging picks up the request id, the authenticated user id
// and the active trace from the context:
//
//	observability.FromContext(ctx).WithError(err).Error("activity write failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.RouteTemplateMiddleware)
//	observability.RegisterMetricsEndpoint(router, registry)
//	handler := observability.HTTPMetricsMiddleware(metrics)(router)
//
// HTTP metrics are labelled with the mux route template, not the raw path.
// Requests no route matched are labelled "unmatched".
// Business gauges (users, projects, tasks) are refreshed by pkg/analytics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(store, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker) // /healthz, /readyz
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//	ctx, span := observability.Tracer().Start(ctx, "TaskService.UpdateStatus")
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
