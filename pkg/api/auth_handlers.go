package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

// RefreshCookieName is the cookie carrying the refresh token
const RefreshCookieName = "refreshToken"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// register handles POST /api/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req tracker.RegisterInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.services.Users.Register(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "User registered successfully")
}

// login handles POST /api/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.services.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	s.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiresAt)
	_ = httputil.WriteSuccess(w, result)
}

// refresh handles POST /api/refresh. The refresh token comes from the cookie
// and is rotated on success.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		httputil.WriteError(w, r, apperrors.Unauthenticated("refresh token required"))
		return
	}

	result, err := s.services.Users.Refresh(r.Context(), cookie.Value)
	if err != nil {
		s.clearRefreshCookie(w)
		httputil.WriteError(w, r, err)
		return
	}

	s.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiresAt)
	_ = httputil.WriteSuccess(w, result)
}

// logout handles POST /api/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	s.services.Users.Logout(r.Context(), identity)
	s.clearRefreshCookie(w)
	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/api",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/api",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
