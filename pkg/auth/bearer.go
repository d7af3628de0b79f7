package auth

import (
	"strings"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
)

// ParseBearer extracts the token from an Authorization header value.
// Format: "Bearer <token>"
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", apperrors.Unauthenticated("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", apperrors.Unauthenticated("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", apperrors.Unauthenticated("invalid authorization header format")
	}
	return token, nil
}
