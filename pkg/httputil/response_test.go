package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
)

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Message
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "ok")
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteMessage(w, http.StatusCreated, "User registered")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"User registered"}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unauthenticated", apperrors.Unauthenticated("authorization header required"), http.StatusUnauthorized, "authorization header required"},
		{"invalid token", apperrors.InvalidToken("invalid or expired token", errors.New("sig")), http.StatusUnauthorized, "invalid or expired token"},
		{"forbidden", apperrors.Forbidden("access denied"), http.StatusForbidden, "access denied"},
		{"not found", apperrors.NotFound("task"), http.StatusNotFound, "task not found"},
		{"invalid input", apperrors.InvalidInput("title", "title is required"), http.StatusBadRequest, "title is required"},
		{"conflict", apperrors.Conflict("user already exists"), http.StatusConflict, "user already exists"},
		{"internal hides cause", apperrors.Internal(errors.New("pq: connection refused")), http.StatusInternalServerError, "internal server error"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
		{"deadline", apperrors.Internal(fmt.Errorf("query: %w", context.DeadlineExceeded)), http.StatusServiceUnavailable, "request timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)

			WriteError(w, r, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeMessage(t, w))
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"id": "t-123"}

	err := WriteCreated(w, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "t-123")
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteSuccess(w, []string{"a", "b"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["a","b"]`, w.Body.String())
}
