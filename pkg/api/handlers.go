package api

import (
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
)

// caller returns the identity the Guard attached. Handlers are only reachable
// behind the Guard, so a missing identity is answered with 401 and false.
func caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthenticated("authentication required"))
		return auth.Identity{}, false
	}
	return identity, true
}

// respond writes v as JSON with status, or the mapped error when err is set
func respond(w http.ResponseWriter, r *http.Request, status int, v interface{}, err error) {
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, status, v)
}
