package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
)

const (
	// DefaultAccessTTL matches the one hour lifetime clients expect
	DefaultAccessTTL = time.Hour
	// DefaultRefreshTTL is the lifetime of the refresh cookie token
	DefaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenConfig configures the token service
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type accessClaims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-limited tokens
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("access token secret is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// IssueAccess signs an access token carrying exactly {sub, role}
func (ts *TokenService) IssueAccess(identity Identity) (string, time.Time, error) {
	if identity.ID == "" || !identity.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("cannot issue token for incomplete identity")
	}

	now := ts.now()
	expiresAt := now.Add(ts.accessTTL)
	claims := accessClaims{
		Role: string(identity.Role),
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    ts.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefresh signs a long-lived refresh token for userID
func (ts *TokenService) IssueRefresh(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}

	now := ts.now()
	expiresAt := now.Add(ts.refreshTTL)
	claims := refreshClaims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    ts.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyAccess validates an access token and narrows its claims to an
// Identity. No other claim leaves this function.
func (ts *TokenService) VerifyAccess(raw string) (Identity, error) {
	var claims accessClaims
	if err := ts.parse(raw, &claims, ts.accessSecret); err != nil {
		return Identity{}, apperrors.InvalidToken("invalid or expired token", err)
	}
	if claims.Type != tokenTypeAccess {
		return Identity{}, apperrors.InvalidToken("invalid or expired token", errors.New("not an access token"))
	}

	role := Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return Identity{}, apperrors.InvalidToken("invalid or expired token", errors.New("incomplete claims"))
	}

	return Identity{ID: claims.Subject, Role: role}, nil
}

// VerifyRefresh validates a refresh token and returns its subject
func (ts *TokenService) VerifyRefresh(raw string) (string, error) {
	var claims refreshClaims
	if err := ts.parse(raw, &claims, ts.refreshSecret); err != nil {
		return "", apperrors.InvalidToken("invalid refresh token", err)
	}
	if claims.Type != tokenTypeRefresh || claims.Subject == "" {
		return "", apperrors.InvalidToken("invalid refresh token", errors.New("not a refresh token"))
	}
	return claims.Subject, nil
}

func (ts *TokenService) parse(raw string, claims jwt.Claims, secret []byte) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("empty token")
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token is not valid")
	}
	return nil
}
