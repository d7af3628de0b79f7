package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

const internalErrorMessage = "internal server error"

// MessageResponse is the body of every error and of plain acknowledgements
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON encodes data as the response body
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteMessage writes {"message": message}
func WriteMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, MessageResponse{Message: message})
}

func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteError maps err to its status and public message. Causes behind a 5xx
// are logged and never reach the client. A blown request deadline is a 503.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context()).WithField("path", r.URL.Path)

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Request deadline exceeded")
		WriteMessage(w, http.StatusServiceUnavailable, "request timed out")
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
	}
	WriteMessage(w, status, apperrors.PublicMessage(err))
}
