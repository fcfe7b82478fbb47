package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ridgeline/jobqueue/internal/env"
)

// WorkerConfig holds configuration for the worker binary.
type WorkerConfig struct {
	Database     DatabaseConfig
	WorkerID     string `env:"WORKER_ID"`
	Concurrency  int    `env:"WORKER_CONCURRENCY"`
	PollMS       int    `env:"POLL_MS"`
	LeaseSeconds int    `env:"LEASE_SECONDS"`
	MetricsPort  int    `env:"METRICS_PORT"`
}

// LoadWorkerConfig loads and validates worker configuration from the
// process environment, applying defaults and bounds for unset fields.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown-host"
		}
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	if cfg.Concurrency < 1 || cfg.Concurrency > 32 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 32, got %d", cfg.Concurrency)
	}

	if cfg.PollMS == 0 {
		cfg.PollMS = 1000
	}
	if cfg.PollMS < 100 || cfg.PollMS > 60000 {
		return nil, fmt.Errorf("POLL_MS must be between 100 and 60000, got %d", cfg.PollMS)
	}

	if cfg.LeaseSeconds == 0 {
		cfg.LeaseSeconds = 120
	}
	if cfg.LeaseSeconds < 10 || cfg.LeaseSeconds > 3600 {
		return nil, fmt.Errorf("LEASE_SECONDS must be between 10 and 3600, got %d", cfg.LeaseSeconds)
	}

	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}

	return cfg, nil
}

// PollInterval returns PollMS as a time.Duration.
func (c *WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollMS) * time.Millisecond
}

// Lease returns LeaseSeconds as a time.Duration.
func (c *WorkerConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}
