// Package config defines server configuration and its loading order.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8090".
	Addr string `koanf:"addr"`

	// DBPath is the sqlite database file; ":memory:" for ephemeral runs.
	DBPath string `koanf:"db_path"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// HTTPLogging enables per-request logging at startup.
	HTTPLogging bool `koanf:"http_logging"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:            ":8090",
		DBPath:          "knotscore.db",
		LogLevel:        "info",
		HTTPLogging:     false,
		ShutdownTimeout: 10 * time.Second,
	}
}
