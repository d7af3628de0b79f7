// Package httputil holds the JSON plumbing shared by every taskhub handler.
//
// Every error body is {"message": "..."}. Handlers hand service errors to
// WriteError, which picks the status from the apperrors kind and never
// leaks an internal cause:
//
//	var in tracker.TaskInput
//	if !httputil.ParseJSONOrError(w, r, &in) {
//		return
//	}
//	task, err := svc.Create(r.Context(), caller, in)
//	if err != nil {
//		httputil.WriteError(w, r, err)
//		return
//	}
//	_ = httputil.WriteCreated(w, task)
//
// The middleware here is transport-level only (request ids, access logs,
// panics, deadlines, CORS, body limits). Authentication and rate limiting
// live in pkg/middleware.
package httputil
