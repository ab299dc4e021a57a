package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the prompt service.
// Environment variables are parsed with the PROMPTGUILD_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver (sqlite | postgres)
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	SQLitePath    string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`
	TxMaxAttempts int    `envconfig:"TX_MAX_ATTEMPTS" default:"8"`

	// Identity provider: dev | jwt | oidc
	AuthMode     string `envconfig:"AUTH_MODE" default:"dev"`
	JWTSecret    string `envconfig:"JWT_SECRET" default:""`
	JWTIssuer    string `envconfig:"JWT_ISSUER" default:""`
	OIDCIssuer   string `envconfig:"OIDC_ISSUER" default:""`
	OIDCClientID string `envconfig:"OIDC_CLIENT_ID" default:""`

	// Generative AI backend
	AIAPIKey            string `envconfig:"AI_API_KEY" default:""`
	AIModel             string `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIBaseURL           string `envconfig:"AI_BASE_URL" default:""`
	AITimeoutSeconds    int    `envconfig:"AI_TIMEOUT_SECONDS" default:"60"`
	AnalyzerConcurrency int    `envconfig:"ANALYZER_CONCURRENCY" default:"4"`
	AnalyzeOnCreate     bool   `envconfig:"ANALYZE_ON_CREATE" default:"true"`

	// Live subscription channel buffer
	LiveBufferSize int `envconfig:"LIVE_BUFFER_SIZE" default:"64"`

	// Optional rotating log file in addition to stdout
	LogFile           string `envconfig:"LOG_FILE" default:""`
	LogFileMaxSizeMB  int    `envconfig:"LOG_FILE_MAX_SIZE_MB" default:"100"`
	LogFileMaxBackups int    `envconfig:"LOG_FILE_MAX_BACKUPS" default:"5"`

	// Health checker configuration
	HealthIntervalSeconds    int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthPingTimeoutSeconds int `envconfig:"HEALTH_PING_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds  int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = filepath.Join("data", "promptguild.db")
		}
	case "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	switch c.AuthMode {
	case "dev":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=dev is not allowed in production")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "oidc":
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			return fmt.Errorf("OIDC_ISSUER and OIDC_CLIENT_ID are required when AUTH_MODE=oidc")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE: %s", c.AuthMode)
	}

	if c.TxMaxAttempts <= 0 {
		c.TxMaxAttempts = 1
	}
	if c.AnalyzerConcurrency <= 0 {
		c.AnalyzerConcurrency = 1
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: PROMPTGUILD_HTTP_PORT, PROMPTGUILD_AI_API_KEY
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PROMPTGUILD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("auth_mode", cfg.AuthMode).
		Str("ai_model", cfg.AIModel).
		Bool("ai_key_present", cfg.AIAPIKey != "").
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		BuildTarget: "local",
		DBDriver:    "sqlite",
		HTTPPort:    8080,
		AuthMode:    "dev",
		AIModel:     "gpt-4o-mini",

		TxMaxAttempts:            8,
		AITimeoutSeconds:         5,
		AnalyzerConcurrency:      2,
		AnalyzeOnCreate:          true,
		LiveBufferSize:           16,
		HealthIntervalSeconds:    1,
		HealthPingTimeoutSeconds: 1,
		BootstrapTimeoutSeconds:  1,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// AIConfigured reports whether an upstream AI credential is present.
func (c *Config) AIConfigured() bool {
	return c.AIAPIKey != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
