package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// RegisterInput is a sign-up request
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// UpdateUserInput is a partial profile update. Nil fields are left alone.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UserService handles accounts and sessions
type UserService struct {
	*core
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}

// Register creates a member account, or an admin account when the request
// asks for it and sign-up roles are allowed
func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *UserView, err error) {
	ctx, span := startSpan(ctx, "UserService.Register")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, apperrors.InvalidInput("name", "name is required")
	case email == "":
		return nil, apperrors.InvalidInput("email", "email is required")
	case in.Password == "":
		return nil, apperrors.InvalidInput("password", "password is required")
	case !validEmail(email):
		return nil, apperrors.InvalidInput("email", "email is invalid")
	case len(in.Password) < s.cfg.MinPasswordLength:
		return nil, apperrors.InvalidInput("password", fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength))
	}

	role, ok := auth.ParseRole(strings.TrimSpace(in.Role))
	if !ok {
		return nil, apperrors.InvalidInput("role", "role must be member or admin")
	}
	if role != auth.RoleMember && !s.cfg.AllowRoleOnSignup {
		return nil, apperrors.InvalidInput("role", "role cannot be chosen at sign-up")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.timestamp()
	user := &storage.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.Conflict("user already exists")
		}
		return nil, apperrors.Internal(err)
	}

	s.Recorder.Record(ctx, audit.Entry{UserID: user.ID, Action: audit.UserRegistered(user.Email)})
	observability.FromContext(ctx).WithField("new_user_id", user.ID).Info("User registered")
	return newUserView(user), nil
}

// Login checks credentials and issues an access and a refresh token
func (s *UserService) Login(ctx context.Context, email, password string) (_ *LoginResult, err error) {
	ctx, span := startSpan(ctx, "UserService.Login")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("email", "email is required")
	}
	if password == "" {
		return nil, apperrors.InvalidInput("password", "password is required")
	}

	invalid := func() error {
		s.Metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return apperrors.Unauthenticated("invalid credentials")
	}

	user, err := s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, invalid()
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := s.Hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		return nil, invalid()
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.Metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	ctx = auth.WithIdentity(ctx, auth.Identity{ID: user.ID, Role: user.Role})
	s.Recorder.Record(ctx, audit.Entry{UserID: user.ID, Action: audit.UserLoggedIn(user.Email)})
	return result, nil
}

// Refresh exchanges a refresh token for a new access token. The user is
// re-read so role changes take effect here.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (_ *LoginResult, err error) {
	ctx, span := startSpan(ctx, "UserService.Refresh")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.Unauthenticated("refresh token required")
	}
	userID, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.Store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.Unauthenticated("user no longer exists")
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	return s.issue(user)
}

func (s *UserService) issue(user *storage.User) (*LoginResult, error) {
	identity := auth.Identity{ID: user.ID, Role: user.Role}
	access, expiresAt, err := s.Tokens.IssueAccess(identity)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, refreshExpiresAt, err := s.Tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &LoginResult{
		AccessToken:      access,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiresAt,
		Role:             user.Role,
		UserID:           user.ID,
	}, nil
}

// Logout records the event. Tokens stay valid until they expire.
func (s *UserService) Logout(ctx context.Context, identity auth.Identity) {
	s.Recorder.Record(ctx, audit.Entry{UserID: identity.ID, Action: audit.UserLoggedOut()})
}

// List returns every user. Admins only.
func (s *UserService) List(ctx context.Context, identity auth.Identity) (_ []*UserView, err error) {
	ctx, span := startSpan(ctx, "UserService.List")
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, "user.list", identity, s.Policy.CanListUsers(identity)); err != nil {
		return nil, err
	}

	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	return views, nil
}

// Get returns the caller's own profile. The self rule needs only the id, so
// it is checked before the lookup.
func (s *UserService) Get(ctx context.Context, identity auth.Identity, id string) (_ *UserView, err error) {
	ctx, span := startSpan(ctx, "UserService.Get", attribute.String("user.id", id))
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, "user.read", identity, s.Policy.CanAccessUser(identity, id)); err != nil {
		return nil, err
	}
	user, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return newUserView(user), nil
}

// Update changes the caller's own name and/or password
func (s *UserService) Update(ctx context.Context, identity auth.Identity, id string, in UpdateUserInput) (_ *UserView, err error) {
	ctx, span := startSpan(ctx, "UserService.Update", attribute.String("user.id", id))
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, "user.update", identity, s.Policy.CanAccessUser(identity, id)); err != nil {
		return nil, err
	}
	user, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, storeError(err, "user")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name", "name cannot be empty")
		}
		user.Name = name
	}
	if in.Password != nil {
		if len(*in.Password) < s.cfg.MinPasswordLength {
			return nil, apperrors.InvalidInput("password", fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength))
		}
		hash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.timestamp()

	if err := s.Store.UpdateUser(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}
	s.Names.Forget(userKey(user.ID))

	s.Recorder.Record(ctx, audit.Entry{UserID: identity.ID, Action: audit.UserUpdatedProfile(user.Email)})
	return newUserView(user), nil
}
