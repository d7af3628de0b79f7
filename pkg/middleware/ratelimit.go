package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// maxTrackedCallers bounds the in-process limiter's memory
const maxTrackedCallers = 10000

// RateLimitConfig is a budget of RequestsPerWindow per WindowDuration plus a
// one-off allowance of BurstSize
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
	BurstSize         int
}

// LoginRateLimitConfig is 10 attempts a minute with a burst of 5
func LoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute, BurstSize: 5}
}

func (c *RateLimitConfig) valid() bool {
	return c != nil && c.RequestsPerWindow > 0 && c.WindowDuration > 0
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
}

// RateLimiter keeps a token bucket per caller in process. Buckets idle for
// two windows are evicted, as are the least recently seen once
// maxTrackedCallers is reached.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.LRU[string, *rate.Limiter]
}

// NewRateLimiter falls back to LoginRateLimitConfig for an unusable config
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if !config.valid() {
		config = LoginRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: lru.NewLRU[string, *rate.Limiter](maxTrackedCallers, nil, 2*config.WindowDuration),
	}
}

func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow never fails
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	b, ok := rl.buckets.Get(key)
	if !ok {
		every := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
		b = rate.NewLimiter(rate.Every(every), rl.config.RequestsPerWindow+rl.config.BurstSize)
	}
	// re-adding refreshes the idle TTL
	rl.buckets.Add(key, b)
	return b.Allow(), nil
}

// Len is the number of callers currently tracked
func (rl *RateLimiter) Len() int {
	return rl.buckets.Len()
}

// RateLimitMiddleware applies a Limiter per client IP. The client IP is the
// socket peer unless that peer is one of the trusted proxies.
type RateLimitMiddleware struct {
	limiter  Limiter
	metrics  *observability.Metrics
	proxies  *httputil.TrustedProxies
	failOpen bool
}

// NewRateLimitMiddleware fails open by default. metrics may be nil.
func NewRateLimitMiddleware(limiter Limiter, metrics *observability.Metrics) *RateLimitMiddleware {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &RateLimitMiddleware{limiter: limiter, metrics: metrics, failOpen: true}
}

// SetFailOpen chooses between letting requests through (true) and answering
// 503 (false) when the limiter itself errors
func (m *RateLimitMiddleware) SetFailOpen(enabled bool) {
	m.failOpen = enabled
}

// SetTrustedProxies lets forwarding headers from these peers pick the key
func (m *RateLimitMiddleware) SetTrustedProxies(proxies *httputil.TrustedProxies) {
	m.proxies = proxies
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := m.limiter.Allow(r.Context(), "ip:"+m.proxies.ClientIP(r))
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("Rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
			} else {
				httputil.WriteMessage(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			}
			return
		}

		cfg := m.limiter.Config()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		m.metrics.RateLimitedTotal.Inc()
		w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowDuration.Seconds())))
		w.Header().Set("X-RateLimit-Remaining", "0")
		httputil.WriteMessage(w, http.StatusTooManyRequests, "too many requests, try again later")
	})
}
