package middleware

import (
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// Guard authenticates bearer tokens. A rejected request never reaches the
// wrapped handler.
type Guard struct {
	tokens *auth.TokenService
}

// NewGuard creates a guard that verifies access tokens with tokens
func NewGuard(tokens *auth.TokenService) *Guard {
	return &Guard{tokens: tokens}
}

// Handler wraps an HTTP handler with authentication
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}

		identity, err := g.tokens.VerifyAccess(raw)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Debug("Access token rejected")
			httputil.WriteError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandlerFunc is Handler for a plain handler function
func (g *Guard) HandlerFunc(fn http.HandlerFunc) http.Handler {
	return g.Handler(fn)
}
