package auth

import (
	"context"

	"github.com/platinummonkey/taskhub/pkg/contextkeys"
)

// Role represents account-level roles
type Role string

const (
	RoleMember Role = "member" // Works on own and assigned tasks
	RoleAdmin  Role = "admin"  // Creates tasks, lists users
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// ParseRole converts a raw string into a Role. The empty string maps to
// RoleMember.
func ParseRole(raw string) (Role, bool) {
	if raw == "" {
		return RoleMember, true
	}
	role := Role(raw)
	return role, role.Valid()
}

// Identity is the authenticated caller. It is built only from verified token
// claims and lives for a single request.
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the identity carries the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	ctx = contextkeys.WithIdentity(ctx, identity)
	return contextkeys.WithUserID(ctx, identity.ID)
}

// IdentityFromContext extracts the identity attached by the guard
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(Identity)
	if !ok || identity.ID == "" {
		return Identity{}, false
	}
	return identity, true
}
