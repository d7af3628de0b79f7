package tracker

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/broadcast"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// DefaultMinPasswordLength is the shortest accepted password
const DefaultMinPasswordLength = 6

// Config tunes service behavior
type Config struct {
	// AllowRoleOnSignup lets registration request the admin role
	AllowRoleOnSignup bool
	MinPasswordLength int
}

// DefaultConfig allows any role at sign-up and six character passwords
func DefaultConfig() Config {
	return Config{
		AllowRoleOnSignup: true,
		MinPasswordLength: DefaultMinPasswordLength,
	}
}

// Deps are the collaborators shared by every service
type Deps struct {
	Store       storage.Store
	Policy      *rbac.Policy
	Tokens      *auth.TokenService
	Hasher      *auth.PasswordHasher
	Recorder    *audit.Recorder
	Broadcaster broadcast.Broadcaster
	Metrics     *observability.Metrics
	Names       *NameCache
}

// Services groups the user, project and task services over one set of deps
type Services struct {
	Users    *UserService
	Projects *ProjectService
	Tasks    *TaskService
}

// New wires the services. Optional deps (Broadcaster, Metrics, Names, Hasher,
// Policy) get defaults when nil.
func New(deps Deps, cfg Config) *Services {
	if deps.Policy == nil {
		deps.Policy = rbac.NewPolicy(false)
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.NewPasswordHasher(0)
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = broadcast.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNopMetrics()
	}
	if deps.Names == nil {
		deps.Names = NewNameCache(0, 0)
	}
	if deps.Recorder == nil {
		deps.Recorder = audit.NewRecorder(deps.Store, deps.Metrics)
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}

	c := &core{Deps: deps, cfg: cfg, now: time.Now}
	return &Services{
		Users:    &UserService{core: c},
		Projects: &ProjectService{core: c},
		Tasks:    &TaskService{core: c},
	}
}

type core struct {
	Deps
	cfg Config
	now func() time.Time
}

func (c *core) timestamp() time.Time {
	return c.now().UTC()
}

// authorize turns a policy decision into a Forbidden error and logs it
func (c *core) authorize(ctx context.Context, op string, id auth.Identity, d rbac.Decision) error {
	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"operation": op,
		"rule":      d.Rule,
		"allowed":   d.Allowed,
		"role":      string(id.Role),
	})
	if d.Allowed {
		logger.Debug("Policy allowed")
		return nil
	}
	logger.Debug("Policy denied")
	c.Metrics.PolicyDenialsTotal.WithLabelValues(op).Inc()
	return apperrors.Forbidden("access denied")
}

// storeError classifies a store failure for resource
func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound(resource)
	case errors.Is(err, storage.ErrDuplicate):
		return apperrors.Conflict(resource + " already exists")
	default:
		return apperrors.Internal(err)
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it. Use with a named error return.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.KindOf(err)))
	}
	span.End()
}
