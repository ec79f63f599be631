package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geolens-ai/query-router/internal/middleware"
	"github.com/geolens-ai/query-router/internal/routing"
	"github.com/geolens-ai/query-router/internal/security"
	"github.com/geolens-ai/query-router/internal/server"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`

	// DomainConfig is the path to the domain configuration document
	// (endpoints, synonyms, entities, inventory seed).
	DomainConfig string `yaml:"domain_config"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// EngineConfig holds the routing engine's scoring parameters. Zero values
// fall back to the shipped defaults.
type EngineConfig struct {
	MinOverlap      float64 `yaml:"min_overlap"`
	MinTokens       int     `yaml:"min_tokens"`
	PhraseBonus     float64 `yaml:"phrase_bonus"`
	EntityBonus     float64 `yaml:"entity_bonus"`
	RelationalBonus float64 `yaml:"relational_bonus"`
	OverlapPenalty  float64 `yaml:"overlap_penalty"`
	MentionBoost    float64 `yaml:"mention_boost"`
	MentionBoostCap float64 `yaml:"mention_boost_cap"`
	NearMissBand    float64 `yaml:"near_miss_band"`
	TopCandidates   int     `yaml:"top_candidates"`

	Semantic SemanticConfig `yaml:"semantic"`
}

// SemanticConfig configures the optional semantic enhancement layer.
type SemanticConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	BlendWeight float64       `yaml:"blend_weight"` // keyword share of the blended score
	CacheSize   int           `yaml:"cache_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	APIKeys      []string         `yaml:"api_keys"`
	AdminKeys    []string         `yaml:"admin_keys"`
	JWTSecret    string           `yaml:"jwt_secret"`
	RequireAuth  bool             `yaml:"require_auth"`
	RateLimiting RateLimitConfig  `yaml:"rate_limiting"`
	Validation   ValidationConfig `yaml:"request_validation"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_minute"`
	BurstSize      int  `yaml:"burst_size"`
}

// ValidationConfig holds OpenAPI request validation configuration.
type ValidationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SpecPath string `yaml:"spec_path"`
}

// LoadConfig loads configuration from defaults, then file, then environment.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	defaults := routing.DefaultOptions()
	c.Engine = EngineConfig{
		MinOverlap:      defaults.MinOverlap,
		MinTokens:       defaults.MinTokens,
		PhraseBonus:     defaults.PhraseBonus,
		EntityBonus:     defaults.EntityBonus,
		RelationalBonus: defaults.RelationalBonus,
		OverlapPenalty:  defaults.OverlapPenalty,
		MentionBoost:    defaults.MentionBoost,
		MentionBoostCap: defaults.MentionBoostCap,
		NearMissBand:    defaults.NearMissBand,
		TopCandidates:   defaults.TopCandidates,
		Semantic: SemanticConfig{
			Enabled:     false,
			Timeout:     300 * time.Millisecond,
			BlendWeight: 0.7,
			CacheSize:   1024,
		},
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		RateLimiting: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 60,
			BurstSize:      10,
		},
		Validation: ValidationConfig{
			Enabled:  false,
			SpecPath: "docs/openapi.yaml",
		},
	}

	c.DomainConfig = "configs/domain.yaml"
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if port := os.Getenv("QUERY_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}
	if level := os.Getenv("QUERY_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("QUERY_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if path := os.Getenv("QUERY_ROUTER_DOMAIN_CONFIG"); path != "" {
		c.DomainConfig = path
	}
	if url := os.Getenv("QUERY_ROUTER_SIMILARITY_URL"); url != "" {
		c.Engine.Semantic.URL = url
		c.Engine.Semantic.Enabled = true
	}
	if keys := os.Getenv("QUERY_ROUTER_API_KEYS"); keys != "" {
		c.Security.APIKeys = strings.Split(keys, ",")
		c.Security.RequireAuth = true
	}
	if keys := os.Getenv("QUERY_ROUTER_ADMIN_KEYS"); keys != "" {
		c.Security.AdminKeys = strings.Split(keys, ",")
	}
	if secret := os.Getenv("QUERY_ROUTER_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.DomainConfig == "" {
		return fmt.Errorf("domain config path cannot be empty")
	}

	if c.Engine.Semantic.Enabled {
		if c.Engine.Semantic.URL == "" {
			return fmt.Errorf("semantic enhancement enabled without a similarity service URL")
		}
		if c.Engine.Semantic.BlendWeight <= 0 || c.Engine.Semantic.BlendWeight > 1 {
			return fmt.Errorf("semantic blend weight %v outside (0,1]", c.Engine.Semantic.BlendWeight)
		}
	}

	return nil
}

// ToEngineOptions converts the engine section into routing options.
func (c *Config) ToEngineOptions() routing.Options {
	return routing.Options{
		MinOverlap:      c.Engine.MinOverlap,
		MinTokens:       c.Engine.MinTokens,
		PhraseBonus:     c.Engine.PhraseBonus,
		EntityBonus:     c.Engine.EntityBonus,
		RelationalBonus: c.Engine.RelationalBonus,
		OverlapPenalty:  c.Engine.OverlapPenalty,
		MentionBoost:    c.Engine.MentionBoost,
		MentionBoostCap: c.Engine.MentionBoostCap,
		NearMissBand:    c.Engine.NearMissBand,
		TopCandidates:   c.Engine.TopCandidates,
	}
}

// ToServerConfig converts to server.ServerConfig.
func (c *Config) ToServerConfig() *server.ServerConfig {
	return &server.ServerConfig{
		Port:           c.Server.Port,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		MaxHeaderBytes: c.Server.MaxHeaderBytes,
		Security:       c.ToSecurityMiddlewareConfig(),
	}
}

// ToSecurityMiddlewareConfig converts to middleware.SecurityMiddlewareConfig.
func (c *Config) ToSecurityMiddlewareConfig() *middleware.SecurityMiddlewareConfig {
	return &middleware.SecurityMiddlewareConfig{
		Auth: &security.Config{
			APIKeys:     c.Security.APIKeys,
			AdminKeys:   c.Security.AdminKeys,
			JWTSecret:   c.Security.JWTSecret,
			RequireAuth: c.Security.RequireAuth,
		},
		RateLimit: &security.RateLimitConfig{
			Enabled:           c.Security.RateLimiting.Enabled,
			RequestsPerMinute: c.Security.RateLimiting.RequestsPerMin,
			BurstSize:         c.Security.RateLimiting.BurstSize,
			CleanupInterval:   5 * time.Minute,
		},
		Validation: &middleware.ValidationConfig{
			Enabled:  c.Security.Validation.Enabled,
			SpecPath: c.Security.Validation.SpecPath,
		},
	}
}
