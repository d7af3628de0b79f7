// Package contextkeys lists every request-scoped value taskhub stores on a
// context.Context. Keeping them in one package stops two packages from
// picking the same key by accident.
package contextkeys

import "context"

// Key is the type of every taskhub context key
type Key string

const (
	// IdentityKey holds the caller's auth.Identity, set by middleware.Guard
	IdentityKey Key = "identity"
	// RequestIDKey holds the X-Request-ID string
	RequestIDKey Key = "request_id"
	// UserIDKey holds the caller's user id for log enrichment
	UserIDKey Key = "user_id"
	// LoggerKey holds the request's *observability.Logger
	LoggerKey Key = "logger"
)

func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID returns "" outside a request
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetUserID returns "" for anonymous requests
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

func stringValue(ctx context.Context, k Key) string {
	s, _ := ctx.Value(k).(string)
	return s
}
