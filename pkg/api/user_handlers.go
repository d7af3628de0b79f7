package api

import (
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

// listUsers handles GET /api/users (admins only)
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	users, err := s.services.Users.List(r.Context(), identity)
	respond(w, r, http.StatusOK, users, err)
}

// getUser handles GET /api/users/{id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	user, err := s.services.Users.Get(r.Context(), identity, id)
	respond(w, r, http.StatusOK, user, err)
}

// updateUser handles PUT /api/users/{id}
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req tracker.UpdateUserInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := s.services.Users.Update(r.Context(), identity, id, req)
	respond(w, r, http.StatusOK, user, err)
}

// listActivity handles GET /api/activity?limit=
func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", audit.DefaultPageSize)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	entries, err := s.recorder.List(r.Context(), identity, limit)
	respond(w, r, http.StatusOK, entries, err)
}
