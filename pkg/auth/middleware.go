package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// userIDKey is the echo context key for the authenticated caller id.
const userIDKey = "auth.user_id"

// Config configures token verification.
type Config struct {
	Secret   []byte
	Issuer   string // checked when set
	Audience string // checked when set
	Leeway   time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	cfg    Config
	parser *jwt.Parser
}

// NewVerifier creates a Verifier. The secret is required.
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	return &Verifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses a raw token and returns the caller id.
func (v *Verifier) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	}); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return UserIDFromClaims(claims)
}

// Middleware returns an echo middleware that rejects requests without a
// valid bearer token with 401. On success the caller id is stored in the
// echo context and in the request context, where logging also picks it up.
//
// Example usage:
//
//	api := e.Group("/api", verifier.Middleware())
//	api.GET("/projects", handler)
func (v *Verifier) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := v.Verify(bearerToken(c.Request()))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required").SetInternal(err)
			}

			c.Set(userIDKey, userID)
			ctx := WithUserID(c.Request().Context(), userID)
			ctx = logging.WithUserID(ctx, userID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// UserID returns the caller id set by Middleware.
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(userIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
