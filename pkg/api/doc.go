// Package api provides the HTTP REST API server for taskhub.
//
// # Overview
//
// The server is a gorilla/mux router mounted under /api that translates JSON
// requests into calls on the tracker services and maps their errors onto
// status codes with a {"message": ...} body. Every route except register,
// login and refresh sits behind the bearer token Guard.
//
// # Routes
//
//	POST   /api/register            201 {message}
//	POST   /api/login               {accessToken, role} + refreshToken cookie
//	POST   /api/refresh             {accessToken} from the refreshToken cookie
//	POST   /api/logout              clears the cookie
//	GET    /api/projects            visible projects
//	POST   /api/projects
//	GET    /api/projects/{id}
//	PUT    /api/projects/{id}       creator only
//	GET    /api/tasks?projectId=    created or assigned tasks
//	POST   /api/tasks
//	GET    /api/tasks/stats
//	GET    /api/tasks/{id}
//	PUT    /api/tasks/{id}          creator only
//	PATCH  /api/tasks/{id}/status   creator, assignee or project owner
//	GET    /api/users               admins only
//	GET    /api/users/{id}          self only
//	PUT    /api/users/{id}          self only
//	GET    /api/activity?limit=     own entries, newest first
//
// Operational endpoints /healthz, /readyz and /metrics are registered at the
// root when a HealthChecker and Gatherer are supplied.
//
// # Usage
//
//	server := api.NewServer(api.Options{
//		Services: services,
//		Recorder: recorder,
//		Tokens:   tokens,
//	})
//	http.ListenAndServe(":5000", server.Handler())
//
// Handler applies request ids, logging, recovery, the request deadline, CORS
// and body limits, and wraps everything in otelhttp. ServeHTTP serves the bare
// router, which is what most tests use.
package api
