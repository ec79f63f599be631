package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/geolens-ai/query-router/internal/security"
)

// SecurityMiddlewareConfig holds configuration for the security stack.
type SecurityMiddlewareConfig struct {
	Auth       *security.Config          `yaml:"auth"`
	RateLimit  *security.RateLimitConfig `yaml:"rate_limit"`
	Validation *ValidationConfig         `yaml:"validation"`
}

// SecurityMiddleware bundles authentication, rate limiting and request
// validation into one handler chain.
type SecurityMiddleware struct {
	authProvider *security.DefaultAuthProvider
	rateLimiter  security.RateLimiter
	validator    *ValidationMiddleware
	logger       *logrus.Logger
}

// NewSecurityMiddleware creates the security middleware stack.
func NewSecurityMiddleware(config *SecurityMiddlewareConfig, logger *logrus.Logger) (*SecurityMiddleware, error) {
	var authProvider *security.DefaultAuthProvider
	if config.Auth != nil {
		authProvider = security.NewDefaultAuthProvider(config.Auth, logger)
	}

	var rateLimiter security.RateLimiter
	if config.RateLimit != nil && config.RateLimit.Enabled {
		rateLimiter = security.NewInMemoryRateLimiter(config.RateLimit, logger)
	}

	var validator *ValidationMiddleware
	var err error
	if config.Validation != nil {
		validator, err = NewValidationMiddleware(config.Validation, logger)
		if err != nil {
			return nil, err
		}
	}

	return &SecurityMiddleware{
		authProvider: authProvider,
		rateLimiter:  rateLimiter,
		validator:    validator,
		logger:       logger,
	}, nil
}

// Handler creates the complete security middleware chain. Order matters:
// auth runs before rate limiting so limits key on the authenticated client,
// and schema validation runs last so unauthenticated callers never exercise
// the OpenAPI router.
func (s *SecurityMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next

		if s.validator != nil {
			handler = s.validator.Middleware(handler)
		}
		if s.rateLimiter != nil {
			handler = security.RateLimitMiddleware(s.rateLimiter, security.DefaultKeyExtractor)(handler)
		}
		if s.authProvider != nil {
			handler = s.authProvider.AuthMiddleware()(handler)
		}
		handler = securityHeadersMiddleware(handler)

		return handler
	}
}

// Stop shuts down background components.
func (s *SecurityMiddleware) Stop() {
	if rl, ok := s.rateLimiter.(*security.InMemoryRateLimiter); ok {
		rl.Stop()
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
