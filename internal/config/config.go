// Package config provides configuration loading for otelrand.
//
// Service settings (listen address, logging, shutdown budgets) come from an
// optional YAML file and OTELRAND_* environment variables. Telemetry exporter
// settings are NOT part of this package: they follow the standard OTEL_*
// environment contract and are resolved by internal/telemetry.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds the complete otelrand configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is the per-client request rate allowed on /rand, in requests
	// per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Sampling thins repeated debug/info/warn entries. Errors are never sampled.
	Sampling bool `koanf:"sampling"`
	// OTel also ships log records to the collector when telemetry is active.
	OTel bool `koanf:"otel"`
}

// TelemetryConfig holds the parts of the tracing lifecycle that are owned by
// the service rather than the OTEL_* environment.
type TelemetryConfig struct {
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	TracerName      string   `koanf:"tracer_name"`
}

// Default returns the configuration used when nothing is overridden.
// The listen address matches the loopback-only default of the service.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sampling: true,
			OTel:     true,
		},
		Telemetry: TelemetryConfig{
			ShutdownTimeout: Duration(5 * time.Second),
			TracerName:      "otelrand",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 0-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate limit cannot be negative: %v", c.Server.RateLimit)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Telemetry.ShutdownTimeout.Duration() <= 0 {
		return errors.New("telemetry shutdown timeout must be positive")
	}
	if c.Telemetry.TracerName == "" {
		return errors.New("telemetry tracer name is required")
	}
	return nil
}

// Addr returns the host:port the server should listen on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
