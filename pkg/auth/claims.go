// Package auth verifies bearer tokens for the projectd HTTP API and carries
// the caller's user id through echo and request contexts.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names checked for the caller id, in order.
const (
	ClaimSubject        = "sub"
	ClaimNameID         = "nameid"
	ClaimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
)

var userIDClaims = []string{ClaimSubject, ClaimNameID, ClaimNameIdentifier}

var (
	// ErrMissingToken is returned when no bearer token is presented.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrNoUserID is returned when a valid token names no caller.
	ErrNoUserID = errors.New("token has no user id claim")
)

// UserIDFromClaims returns the first non-empty caller id claim.
func UserIDFromClaims(claims jwt.MapClaims) (string, error) {
	for _, name := range userIDClaims {
		if v, ok := claims[name].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrNoUserID
}

// Sign issues an HS256 token for userID valid for ttl.
func Sign(cfg Config, userID string, ttl time.Duration) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	now := cfg.now()
	claims := jwt.MapClaims{
		ClaimSubject: userID,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

type userCtxKey struct{}

// WithUserID returns a context carrying the authenticated caller id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromContext returns the authenticated caller id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userCtxKey{}).(string)
	return id, ok && id != ""
}
