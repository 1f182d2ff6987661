package config

import (
	"net/http"
	"time"

	"github.com/rickgao/wsctl/internal/transport"
)

// Config is the wsctl configuration.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Transport TransportConfig `yaml:"transport"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
	Inspect   InspectConfig   `yaml:"inspect"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InstanceConfig identifies this process in logs and metrics.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// TransportConfig configures the WebSocket endpoint.
type TransportConfig struct {
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	CloseTimeout     time.Duration     `yaml:"close_timeout"`
	PingInterval     *time.Duration    `yaml:"ping_interval"` // nil = default, 0 = disabled
	ReadLimit        int64             `yaml:"read_limit"`
	QueueSize        int               `yaml:"queue_size"`
	UserAgent        string            `yaml:"user_agent"`
	Headers          map[string]string `yaml:"headers"`
}

// ShutdownConfig controls graceful shutdown.
type ShutdownConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	CloseCode int           `yaml:"close_code"`
}

// InspectConfig configures the HTTP inspection server.
type InspectConfig struct {
	Enabled     *bool  `yaml:"enabled"` // nil = default (true)
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
}

// IsEnabled reports whether the inspection server should run.
func (c InspectConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Endpoint converts the transport section to an endpoint config.
func (c TransportConfig) Endpoint() transport.Config {
	cfg := transport.Config{
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		CloseTimeout:     c.CloseTimeout,
		ReadLimit:        c.ReadLimit,
		QueueSize:        c.QueueSize,
		UserAgent:        c.UserAgent,
	}
	if c.PingInterval != nil {
		cfg.PingInterval = *c.PingInterval
	}
	if len(c.Headers) > 0 {
		cfg.Header = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			cfg.Header.Set(k, v)
		}
	}
	return cfg
}
