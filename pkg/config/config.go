package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pathwayhq/pathway/pkg/observability"
)

// EnvProduction is the environment name that enables secure cookies and
// forbids the unverified claims decoder
const EnvProduction = "production"

// Config holds all application configuration
type Config struct {
	// Environment is one of development, staging, production
	Environment string

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig

	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// QueryTimeout bounds each request's store I/O via a request-context
	// deadline
	QueryTimeout time.Duration
}

// RedisConfig holds Redis configuration for the distributed rate limiter
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds claims-provider and scope-cookie configuration
type AuthConfig struct {
	// OIDC issuer used by the verifying claims provider. Required in
	// production.
	OIDCIssuerURL string
	OIDCClientID  string

	// Provider label recorded on external identities (e.g. "auth0",
	// "keycloak")
	Provider string

	// InsecureClaims selects the unverified JWT payload decoder. Only
	// honored outside production; Validate rejects it there.
	InsecureClaims bool

	// CookieMaxAge is the lifetime of the active-scope cookies
	CookieMaxAge time.Duration

	// InviteTTL is the default invite expiry window
	InviteTTL time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("PATHWAY_ENV", "development"),
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PATHWAY_HOST", "0.0.0.0"),
		Port:            getEnv("PATHWAY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PATHWAY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PATHWAY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PATHWAY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PATHWAY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PATHWAY_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("PATHWAY_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("PATHWAY_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("PATHWAY_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("PATHWAY_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		QueryTimeout:    getEnvDuration("PATHWAY_POSTGRES_TIMEOUT", 5*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  getEnvBool("PATHWAY_REDIS_ENABLED", false),
		Addr:     getEnv("PATHWAY_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("PATHWAY_REDIS_PASSWORD", ""),
		DB:       getEnvInt("PATHWAY_REDIS_DB", 0),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDCIssuerURL:  getEnv("PATHWAY_OIDC_ISSUER_URL", ""),
		OIDCClientID:   getEnv("PATHWAY_OIDC_CLIENT_ID", ""),
		Provider:       getEnv("PATHWAY_AUTH_PROVIDER", "oidc"),
		InsecureClaims: getEnvBool("PATHWAY_INSECURE_CLAIMS", false),
		CookieMaxAge:   getEnvDuration("PATHWAY_COOKIE_MAX_AGE", 30*24*time.Hour),
		InviteTTL:      getEnvDuration("PATHWAY_INVITE_TTL", 7*24*time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("PATHWAY_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("PATHWAY_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.IsProduction() {
		if c.Auth.InsecureClaims {
			return fmt.Errorf("insecure claims decoding is not allowed in production")
		}
		if c.Auth.OIDCIssuerURL == "" {
			return fmt.Errorf("OIDC issuer URL is required in production")
		}
	}
	if !c.Auth.InsecureClaims && c.Auth.OIDCIssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required unless insecure claims are enabled")
	}

	if c.Auth.CookieMaxAge <= 0 {
		return fmt.Errorf("cookie max age must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
