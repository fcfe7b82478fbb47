package config

import "errors"

// ErrDSNRequired is returned when the database connection string is missing.
var ErrDSNRequired = errors.New("DATABASE_URL is required")

// DatabaseConfig holds connection pool settings for the Postgres-backed queue store.
type DatabaseConfig struct {
	DSN string `env:"DATABASE_URL"`

	// Connection pool settings (zero = infrastructure defaults).
	MaxOpenConns    int `env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int `env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int `env:"DATABASE_CONN_MAX_LIFETIME_SEC"`
	ConnMaxIdleTime int `env:"DATABASE_CONN_MAX_IDLE_TIME_SEC"`
}

// Validate implements env.Validator.
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return ErrDSNRequired
	}
	return nil
}
