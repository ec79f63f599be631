package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Permission scopes. Routing is open to any authenticated client; reloading
// the domain configuration is an ops action.
const (
	PermRoute  = "route:query"
	PermReload = "admin:reload"
)

// AuthProvider validates credentials presented to the HTTP surface.
type AuthProvider interface {
	Authenticate(ctx context.Context, token string) (*AuthInfo, error)
	ValidateAPIKey(ctx context.Context, apiKey string) (*AuthInfo, error)
	GenerateJWT(subject string, permissions []string) (string, error)
	ValidateJWT(tokenString string) (*JWTClaims, error)
}

// AuthInfo is the authenticated caller.
type AuthInfo struct {
	Subject     string     `json:"subject"`
	Permissions []string   `json:"permissions"`
	AuthType    string     `json:"auth_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// HasPermission reports whether the caller carries a scope.
func (a *AuthInfo) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// JWTClaims are the token claims issued and accepted by this service.
type JWTClaims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration. AdminKeys additionally grant the
// admin:reload scope.
type Config struct {
	APIKeys     []string      `yaml:"api_keys"`
	AdminKeys   []string      `yaml:"admin_keys"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`
	RequireAuth bool          `yaml:"require_auth"`
}

// DefaultAuthProvider implements AuthProvider over static keys and HMAC JWTs.
type DefaultAuthProvider struct {
	config *Config
	logger *logrus.Logger
}

// NewDefaultAuthProvider creates an authentication provider.
func NewDefaultAuthProvider(config *Config, logger *logrus.Logger) *DefaultAuthProvider {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	return &DefaultAuthProvider{config: config, logger: logger}
}

// Authenticate validates a token as either an API key or a JWT.
func (a *DefaultAuthProvider) Authenticate(ctx context.Context, token string) (*AuthInfo, error) {
	if info, err := a.ValidateAPIKey(ctx, token); err == nil {
		return info, nil
	}
	if claims, err := a.ValidateJWT(token); err == nil {
		var expires *time.Time
		if claims.ExpiresAt != nil {
			expires = &claims.ExpiresAt.Time
		}
		return &AuthInfo{
			Subject:     claims.Subject,
			Permissions: claims.Permissions,
			AuthType:    "jwt",
			ExpiresAt:   expires,
		}, nil
	}
	return nil, errors.New("invalid authentication token")
}

// ValidateAPIKey checks a key against the configured lists using
// constant-time comparison.
func (a *DefaultAuthProvider) ValidateAPIKey(ctx context.Context, apiKey string) (*AuthInfo, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	for _, valid := range a.config.AdminKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
			return &AuthInfo{
				Subject:     maskKey(apiKey),
				Permissions: []string{PermRoute, PermReload},
				AuthType:    "api_key",
			}, nil
		}
	}
	for _, valid := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
			return &AuthInfo{
				Subject:     maskKey(apiKey),
				Permissions: []string{PermRoute},
				AuthType:    "api_key",
			}, nil
		}
	}

	a.logger.WithField("api_key_prefix", maskKey(apiKey)).Warn("Invalid API key attempted")
	return nil, errors.New("invalid API key")
}

// GenerateJWT issues a token for a subject with the given scopes.
func (a *DefaultAuthProvider) GenerateJWT(subject string, permissions []string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := &JWTClaims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
			Issuer:    "query-router",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.config.JWTSecret))
}

// ValidateJWT parses and verifies a token string.
func (a *DefaultAuthProvider) ValidateJWT(tokenString string) (*JWTClaims, error) {
	if a.config.JWTSecret == "" {
		return nil, errors.New("JWT secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JWT: %w", err)
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid JWT claims")
	}
	return claims, nil
}

type contextKey string

const authInfoKey contextKey = "auth_info"

// AuthFromContext retrieves the authenticated caller, if any.
func AuthFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// AuthMiddleware authenticates requests from the Authorization header or the
// X-API-Key header. When RequireAuth is false, unauthenticated requests pass
// through with no AuthInfo in context.
func (a *DefaultAuthProvider) AuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				if a.config.RequireAuth {
					writeAuthError(w, http.StatusUnauthorized, "authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			info, err := a.Authenticate(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			ctx := context.WithValue(r.Context(), authInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a handler behind a scope. Used on /v1/reload.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := AuthFromContext(r.Context())
			if !ok || !info.HasPermission(perm) {
				writeAuthError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	return r.Header.Get("X-API-Key")
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, code)
}

// maskKey keeps only a short prefix for logs.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}
