package config

import (
	"fmt"

	"github.com/ridgeline/jobqueue/internal/env"
)

// ServerConfig holds configuration for the admission HTTP server binary.
type ServerConfig struct {
	Database DatabaseConfig
	Port     int    `env:"PORT"`
	Env      string `env:"NODE_ENV"`
}

// LoadServerConfig loads and validates the admission server configuration
// from the process environment, applying defaults for unset fields.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if cfg.Port <= 0 {
		cfg.Port = 3001
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	switch cfg.Env {
	case "development", "test", "production":
	default:
		return nil, fmt.Errorf("NODE_ENV must be one of development|test|production, got %q", cfg.Env)
	}

	return cfg, nil
}
