package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
)

var errBodyRequired = apperrors.InvalidInput("body", "request body is required")

// ParseJSON decodes the request body into dest. Malformed, empty and oversized
// bodies all come back as InvalidInput.
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errBodyRequired
	}
	err := json.NewDecoder(r.Body).Decode(dest)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.InvalidInput("body", "request body too large")
	}
	if errors.Is(err, io.EOF) {
		return errBodyRequired
	}
	return apperrors.InvalidInput("body", "invalid JSON")
}

// ParseJSONOrError is ParseJSON that answers the request itself on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	err := ParseJSON(r, dest)
	if err != nil {
		WriteError(w, r, err)
	}
	return err == nil
}

// ParsePathString returns the trimmed mux variable key, which must be set
func ParsePathString(r *http.Request, key string) (string, error) {
	if v := strings.TrimSpace(mux.Vars(r)[key]); v != "" {
		return v, nil
	}
	return "", apperrors.InvalidInput(key, "missing path parameter: "+key)
}

// ParsePathStringOrError is ParsePathString that answers the request itself
// on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v, err := ParsePathString(r, key)
	if err != nil {
		WriteError(w, r, err)
		return "", false
	}
	return v, true
}

// ParseQueryInt returns defaultVal when key is absent
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(key, "invalid integer for query param "+key)
	}
	return n, nil
}

// ParseQueryString returns the trimmed value, or defaultVal when blank
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		return v
	}
	return defaultVal
}
