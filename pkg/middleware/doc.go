// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// Guard verifies "Authorization: Bearer <token>" and attaches the resulting
// auth.Identity to the request context:
//
//	guard := middleware.NewGuard(tokens)
//	api.Handle("/tasks", guard.HandlerFunc(h.listTasks)).Methods(http.MethodGet)
//
// RateLimitMiddleware limits requests per client IP, backed either by an
// in-process token bucket or by a Redis fixed window shared across instances:
//
//	limiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig())
//	login := middleware.NewRateLimitMiddleware(limiter, metrics).Handler(h)
//
//	shared := middleware.NewDistributedRateLimiter(redisClient, nil, "")
package middleware
