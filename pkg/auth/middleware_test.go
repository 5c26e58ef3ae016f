package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Secret:   []byte("test-signing-secret"),
		Issuer:   "projectd",
		Audience: "projectd-api",
		Now:      func() time.Time { return testNow },
	}
}

func signClaims(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return tok
}

func TestVerifier_Verify(t *testing.T) {
	cfg := testConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	valid, err := Sign(cfg, "alice", time.Hour)
	require.NoError(t, err)

	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	wrongIss, err := Sign(otherIssuer, "alice", time.Hour)
	require.NoError(t, err)

	otherAud := cfg
	otherAud.Audience = "other-api"
	wrongAud, err := Sign(otherAud, "alice", time.Hour)
	require.NoError(t, err)

	expired, err := Sign(cfg, "alice", -time.Minute)
	require.NoError(t, err)

	wrongKey := cfg
	wrongKey.Secret = []byte("not-the-secret")
	badSig, err := Sign(wrongKey, "alice", time.Hour)
	require.NoError(t, err)

	noExp := signClaims(t, cfg.Secret, jwt.MapClaims{"sub": "alice", "iss": "projectd", "aud": "projectd-api"})

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "alice", "iss": "projectd", "aud": "projectd-api", "exp": testNow.Add(time.Hour).Unix(),
	}).SignedString(cfg.Secret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{name: "valid", token: valid, want: "alice"},
		{name: "empty", token: "", wantErr: ErrMissingToken},
		{name: "wrong issuer", token: wrongIss, wantErr: jwt.ErrTokenInvalidIssuer},
		{name: "wrong audience", token: wrongAud, wantErr: jwt.ErrTokenInvalidAudience},
		{name: "expired", token: expired, wantErr: jwt.ErrTokenExpired},
		{name: "bad signature", token: badSig, wantErr: jwt.ErrTokenSignatureInvalid},
		{name: "missing exp", token: noExp, wantErr: jwt.ErrTokenRequiredClaimMissing},
		{name: "unexpected algorithm", token: hs512, wantErr: jwt.ErrTokenSignatureInvalid},
		{name: "garbage", token: "not.a.jwt", wantErr: jwt.ErrTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserIDFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{name: "sub", claims: jwt.MapClaims{"sub": "u1", "nameid": "u2"}, want: "u1"},
		{name: "nameid", claims: jwt.MapClaims{"nameid": "u2"}, want: "u2"},
		{name: "name identifier uri", claims: jwt.MapClaims{ClaimNameIdentifier: "u3"}, want: "u3"},
		{name: "empty sub falls through", claims: jwt.MapClaims{"sub": "", "nameid": "u2"}, want: "u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserIDFromClaims(tt.claims)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := UserIDFromClaims(jwt.MapClaims{"email": "a@b"})
	assert.ErrorIs(t, err, ErrNoUserID)
}

func TestVerifier_TokenWithoutUserID(t *testing.T) {
	cfg := testConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	tok := signClaims(t, cfg.Secret, jwt.MapClaims{
		"iss": "projectd", "aud": "projectd-api", "exp": testNow.Add(time.Hour).Unix(),
	})
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrNoUserID)
}

func TestMiddleware_SetsUserID(t *testing.T) {
	cfg := testConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	tok, err := Sign(cfg, "alice", time.Hour)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var fromEcho, fromCtx, fromLog string
	h := v.Middleware()(func(c echo.Context) error {
		fromEcho, _ = UserID(c)
		fromCtx, _ = UserIDFromContext(c.Request().Context())
		fromLog = logging.UserIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", fromEcho)
	assert.Equal(t, "alice", fromCtx)
	assert.Equal(t, "alice", fromLog)
}

func TestMiddleware_Rejects(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", "Bearer nope"} {
		t.Run(header, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			called := false
			err := v.Middleware()(func(echo.Context) error {
				called = true
				return nil
			})(c)

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, http.StatusUnauthorized, he.Code)
			assert.False(t, called)
		})
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", bearerToken(req))
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(Config{})
	assert.Error(t, err)

	_, err = Sign(Config{}, "alice", time.Hour)
	assert.Error(t, err)
}
