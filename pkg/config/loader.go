package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"ADMIN_HTTP_PORT" envDefault:"8090"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadFrom parses the given key/value map instead of the process environment.
// Tests and embedded callers use it to avoid mutating os.Environ.
func LoadFrom(cfg any, environment map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
