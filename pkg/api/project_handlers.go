package api

import (
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

// listProjects handles GET /api/projects
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	projects, err := s.services.Projects.List(r.Context(), identity)
	respond(w, r, http.StatusOK, projects, err)
}

// createProject handles POST /api/projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	var req tracker.ProjectInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	project, err := s.services.Projects.Create(r.Context(), identity, req)
	respond(w, r, http.StatusCreated, project, err)
}

// getProject handles GET /api/projects/{id}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	project, err := s.services.Projects.Get(r.Context(), identity, id)
	respond(w, r, http.StatusOK, project, err)
}

// updateProject handles PUT /api/projects/{id}
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req tracker.ProjectInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	project, err := s.services.Projects.Update(r.Context(), identity, id, req)
	respond(w, r, http.StatusOK, project, err)
}
