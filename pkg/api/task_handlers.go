package api

import (
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

type statusRequest struct {
	Status string `json:"status"`
}

// listTasks handles GET /api/tasks?projectId=
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	projectID := httputil.ParseQueryString(r, "projectId", "")
	tasks, err := s.services.Tasks.List(r.Context(), identity, projectID)
	respond(w, r, http.StatusOK, tasks, err)
}

// createTask handles POST /api/tasks
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	var req tracker.TaskInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	task, err := s.services.Tasks.Create(r.Context(), identity, req)
	respond(w, r, http.StatusCreated, task, err)
}

// taskStats handles GET /api/tasks/stats
func (s *Server) taskStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	stats, err := s.services.Tasks.Stats(r.Context(), identity)
	respond(w, r, http.StatusOK, stats, err)
}

// getTask handles GET /api/tasks/{id}
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	task, err := s.services.Tasks.Get(r.Context(), identity, id)
	respond(w, r, http.StatusOK, task, err)
}

// updateTask handles PUT /api/tasks/{id}
func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req tracker.TaskInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	task, err := s.services.Tasks.Update(r.Context(), identity, id, req)
	respond(w, r, http.StatusOK, task, err)
}

// updateTaskStatus handles PATCH /api/tasks/{id}/status
func (s *Server) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	task, err := s.services.Tasks.UpdateStatus(r.Context(), identity, id, req.Status)
	respond(w, r, http.StatusOK, task, err)
}
