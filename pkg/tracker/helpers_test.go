package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/storage/memory"
)

type emitted struct {
	event   string
	payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingBroadcaster) Emit(ctx context.Context, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{event: event, payload: payload})
}

func (r *recordingBroadcaster) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

type failingActivityStore struct {
	*memory.Store
}

func (failingActivityStore) AppendActivity(ctx context.Context, entry *storage.ActivityEntry) error {
	return errors.New("activity collection unavailable")
}

type fixture struct {
	svc         *Services
	store       *memory.Store
	broadcaster *recordingBroadcaster
	metrics     *observability.Metrics
	tokens      *auth.TokenService
}

type setup struct {
	store *memory.Store
	deps  *Deps
	cfg   *Config
}

type fixtureOption func(*setup)

func withMembersCreatingProjects(s *setup) { s.deps.Policy = rbac.NewPolicy(true) }

func withoutSignupRoles(s *setup) { s.cfg.AllowRoleOnSignup = false }

func withFailingActivity(s *setup) {
	s.deps.Recorder = audit.NewRecorder(failingActivityStore{s.store}, s.deps.Metrics)
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := memory.New()
	tokens, err := auth.NewTokenService(auth.TokenConfig{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	broadcaster := &recordingBroadcaster{}
	deps := Deps{
		Store:       store,
		Policy:      rbac.NewPolicy(false),
		Tokens:      tokens,
		Hasher:      auth.NewPasswordHasher(4),
		Recorder:    audit.NewRecorder(store, metrics),
		Broadcaster: broadcaster,
		Metrics:     metrics,
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&setup{store: store, deps: &deps, cfg: &cfg})
	}

	return &fixture{
		svc:         New(deps, cfg),
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
		tokens:      tokens,
	}
}

// register creates a user and returns its identity
func (f *fixture) register(t *testing.T, name string, role auth.Role) auth.Identity {
	t.Helper()
	u, err := f.svc.Users.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret123",
		Role:     string(role),
	})
	require.NoError(t, err)
	return auth.Identity{ID: u.ID, Role: u.Role}
}

func (f *fixture) activity(t *testing.T, userID string) []*storage.ActivityEntry {
	t.Helper()
	entries, err := f.store.ListActivity(context.Background(), userID, 0)
	require.NoError(t, err)
	return entries
}

func strPtr(s string) *string { return &s }
