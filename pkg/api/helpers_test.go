package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage/memory"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

type testEnv struct {
	server   *Server
	handler  http.Handler
	store    *memory.Store
	tokens   *auth.TokenService
	metrics  *observability.Metrics
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, configure ...func(*Options)) *testEnv {
	t.Helper()

	store := memory.New()
	tokens, err := auth.NewTokenService(auth.TokenConfig{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	recorder := audit.NewRecorder(store, metrics)

	services := tracker.New(tracker.Deps{
		Store:    store,
		Tokens:   tokens,
		Hasher:   auth.NewPasswordHasher(4),
		Recorder: recorder,
		Metrics:  metrics,
	}, tracker.DefaultConfig())

	opts := Options{
		Services: services,
		Recorder: recorder,
		Tokens:   tokens,
		Logger:   observability.NewLogger(observability.ErrorLevel, io.Discard),
		Metrics:  metrics,
		Gatherer: registry,
		Health:   observability.NewHealthChecker(store, nil, "test"),
	}
	for _, fn := range configure {
		fn(&opts)
	}

	server := NewServer(opts)
	return &testEnv{
		server:   server,
		handler:  server.Handler(),
		store:    store,
		tokens:   tokens,
		metrics:  metrics,
		registry: registry,
	}
}

// do sends a JSON request through the full middleware chain. body may be nil,
// a string sent verbatim, or a value encoded as JSON.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

type session struct {
	ID    string
	Token string
}

// signup registers and logs a user in through the API
func (e *testEnv) signup(t *testing.T, name, role string) session {
	t.Helper()

	email := name + "@example.com"
	rr := e.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123", "role": role,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var login struct {
		AccessToken string `json:"accessToken"`
	}
	decode(t, rr, &login)

	identity, err := e.tokens.VerifyAccess(login.AccessToken)
	require.NoError(t, err)
	return session{ID: identity.ID, Token: login.AccessToken}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dest), rr.Body.String())
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rr, &body)
	return body.Message
}

func refreshCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}
