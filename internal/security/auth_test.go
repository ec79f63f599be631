package security

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testProvider() *DefaultAuthProvider {
	return NewDefaultAuthProvider(&Config{
		APIKeys:     []string{"reader-key-12345"},
		AdminKeys:   []string{"admin-key-12345"},
		JWTSecret:   "test-secret",
		RequireAuth: true,
	}, testLogger())
}

func TestValidateAPIKey(t *testing.T) {
	p := testProvider()
	ctx := context.Background()

	info, err := p.ValidateAPIKey(ctx, "reader-key-12345")
	require.NoError(t, err)
	assert.True(t, info.HasPermission(PermRoute))
	assert.False(t, info.HasPermission(PermReload))
	assert.Equal(t, "api_key", info.AuthType)

	_, err = p.ValidateAPIKey(ctx, "wrong-key")
	assert.Error(t, err)

	_, err = p.ValidateAPIKey(ctx, "")
	assert.Error(t, err)
}

func TestAdminKeyGrantsReload(t *testing.T) {
	p := testProvider()

	info, err := p.ValidateAPIKey(context.Background(), "admin-key-12345")
	require.NoError(t, err)
	assert.True(t, info.HasPermission(PermRoute))
	assert.True(t, info.HasPermission(PermReload))
}

func TestJWTRoundTrip(t *testing.T) {
	p := testProvider()

	token, err := p.GenerateJWT("analyst", []string{PermRoute})
	require.NoError(t, err)

	claims, err := p.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.Subject)
	assert.Equal(t, []string{PermRoute}, claims.Permissions)
	assert.Equal(t, "query-router", claims.Issuer)
}

func TestValidateJWTRejectsTampering(t *testing.T) {
	p := testProvider()
	other := NewDefaultAuthProvider(&Config{JWTSecret: "different-secret"}, testLogger())

	token, err := other.GenerateJWT("analyst", []string{PermRoute})
	require.NoError(t, err)

	_, err = p.ValidateJWT(token)
	assert.Error(t, err)

	_, err = p.ValidateJWT("not-a-token")
	assert.Error(t, err)
}

func TestJWTExpiry(t *testing.T) {
	p := NewDefaultAuthProvider(&Config{
		JWTSecret: "test-secret",
		JWTExpiry: -time.Hour,
	}, testLogger())

	token, err := p.GenerateJWT("analyst", []string{PermRoute})
	require.NoError(t, err)

	_, err = p.ValidateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticateAcceptsKeyOrJWT(t *testing.T) {
	p := testProvider()
	ctx := context.Background()

	info, err := p.Authenticate(ctx, "reader-key-12345")
	require.NoError(t, err)
	assert.Equal(t, "api_key", info.AuthType)

	token, err := p.GenerateJWT("analyst", []string{PermRoute, PermReload})
	require.NoError(t, err)
	info, err = p.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "jwt", info.AuthType)
	assert.True(t, info.HasPermission(PermReload))

	_, err = p.Authenticate(ctx, "garbage")
	assert.Error(t, err)
}

func authedStatus(t *testing.T, p *DefaultAuthProvider, setup func(*http.Request), handler http.Handler) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/v1/route", nil)
	setup(req)
	rec := httptest.NewRecorder()
	p.AuthMiddleware()(handler).ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthMiddleware(t *testing.T) {
	p := testProvider()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, found := AuthFromContext(r.Context())
		require.True(t, found)
		assert.True(t, info.HasPermission(PermRoute))
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, authedStatus(t, p, func(r *http.Request) {}, ok))
	assert.Equal(t, http.StatusUnauthorized, authedStatus(t, p, func(r *http.Request) {
		r.Header.Set("X-API-Key", "wrong")
	}, ok))
	assert.Equal(t, http.StatusOK, authedStatus(t, p, func(r *http.Request) {
		r.Header.Set("X-API-Key", "reader-key-12345")
	}, ok))
	assert.Equal(t, http.StatusOK, authedStatus(t, p, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer reader-key-12345")
	}, ok))
}

func TestAuthMiddlewareOptionalAuth(t *testing.T) {
	p := NewDefaultAuthProvider(&Config{RequireAuth: false}, testLogger())
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found := AuthFromContext(r.Context())
		assert.False(t, found)
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, authedStatus(t, p, func(r *http.Request) {}, handler))
}

func TestRequirePermission(t *testing.T) {
	p := testProvider()
	reload := RequirePermission(PermReload)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusForbidden, authedStatus(t, p, func(r *http.Request) {
		r.Header.Set("X-API-Key", "reader-key-12345")
	}, reload))
	assert.Equal(t, http.StatusOK, authedStatus(t, p, func(r *http.Request) {
		r.Header.Set("X-API-Key", "admin-key-12345")
	}, reload))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "read****", maskKey("reader-key-12345"))
}
