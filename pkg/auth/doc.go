// Package auth provides identities, signed access tokens and password hashing
// for the taskhub API.
//
// # Overview
//
// Callers authenticate with an email and password, receive a short-lived
// access token (HS256 JWT) and a refresh token delivered as an httpOnly
// cookie. Every protected request carries the access token as
// "Authorization: Bearer <token>".
//
// # Identity
//
// Identity is the only thing a verified token yields:
//
//	identity, err := tokens.VerifyAccess(raw)
//	// identity.ID   - user id (token subject)
//	// identity.Role - member or admin
//
// Extra claims present in a token are never propagated. The role is fixed for
// the lifetime of the token; a role change takes effect on the next refresh.
//
// # Tokens
//
//	tokens, err := auth.NewTokenService(auth.TokenConfig{
//		AccessSecret:  cfg.Auth.AccessSecret,
//		RefreshSecret: cfg.Auth.RefreshSecret,
//	})
//	access, expiresAt, err := tokens.IssueAccess(identity)
//	refresh, _, err := tokens.IssueRefresh(identity.ID)
//
// Logout is stateless: there is no server-side revocation list.
//
// # Passwords
//
//	hasher := auth.NewPasswordHasher(0) // bcrypt.DefaultCost
//	hash, err := hasher.Hash(password)
//	ok, err := hasher.Compare(hash, password)
//
// # Related Packages
//
//   - pkg/middleware: Guard that turns a bearer header into an Identity
//   - pkg/rbac: Resource access policy evaluated against an Identity
package auth
