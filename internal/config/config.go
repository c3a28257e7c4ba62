package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	pkgconfig "github.com/ecclesia-hub/admin-client/pkg/config"
	"github.com/ecclesia-hub/admin-client/pkg/database"
)

// Credential store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the admin client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ADMIN_HTTP_PORT" envDefault:"8090"`

	// Remote church-management API
	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"http://localhost:8000/api"`
	APITimeout    time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	APIMaxRetries int           `env:"API_MAX_RETRIES" envDefault:"2"`

	// Credential store
	CredentialBackend   string `env:"CREDENTIAL_BACKEND" envDefault:"redis"`
	CredentialNamespace string `env:"CREDENTIAL_NAMESPACE" envDefault:"churchadmin:"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"churchadmin"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"churchadmin_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"churchadmin"`
	PostgresSSL  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	PostgresSlowQuery time.Duration `env:"POSTGRES_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Activity monitor
	ActivitySweepInterval time.Duration `env:"ACTIVITY_SWEEP_INTERVAL" envDefault:"60s"`
	ActivityTouchInterval time.Duration `env:"ACTIVITY_TOUCH_INTERVAL" envDefault:"0s"`

	// Capability override for local development only
	CapabilityOverrideRole string `env:"CAPABILITY_OVERRIDE_ROLE" envDefault:""`

	// Kafka; empty disables lifecycle events
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load admin client config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom is Load over an explicit environment map.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environment); err != nil {
		return nil, fmt.Errorf("load admin client config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must not be negative, got %d", c.APIMaxRetries)
	}
	switch c.CredentialBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required for the postgres backend")
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("invalid POSTGRES_PORT: %d", c.PostgresPort)
		}
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}
	if c.CredentialNamespace == "" {
		return fmt.Errorf("CREDENTIAL_NAMESPACE is required")
	}
	if c.ActivitySweepInterval <= 0 {
		return fmt.Errorf("ACTIVITY_SWEEP_INTERVAL must be positive, got %s", c.ActivitySweepInterval)
	}
	if c.ActivityTouchInterval < 0 {
		return fmt.Errorf("ACTIVITY_TOUCH_INTERVAL must not be negative, got %s", c.ActivityTouchInterval)
	}
	if c.CapabilityOverrideRole != "" {
		if c.IsProduction() {
			return fmt.Errorf("CAPABILITY_OVERRIDE_ROLE is not allowed in production")
		}
		if !domain.KnownRole(c.CapabilityOverrideRole) {
			return fmt.Errorf("unknown CAPABILITY_OVERRIDE_ROLE %q", c.CapabilityOverrideRole)
		}
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the pool configuration for the postgres backend.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the client configuration for the redis backend.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}
