package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/wsctl/internal/transport"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Transport.validate("transport"); err != nil {
		return err
	}

	if c.Shutdown.Timeout <= 0 {
		return errors.New("shutdown.timeout must be > 0")
	}
	if !transport.ValidCloseCode(c.Shutdown.CloseCode) {
		return fmt.Errorf("shutdown.close_code %d cannot be sent in a close frame", c.Shutdown.CloseCode)
	}

	if c.Inspect.IsEnabled() {
		if c.Inspect.Addr == "" {
			return errors.New("inspect.addr is required when inspect is enabled")
		}
		if !strings.HasPrefix(c.Inspect.MetricsPath, "/") {
			return fmt.Errorf("inspect.metrics_path must start with /, got %q", c.Inspect.MetricsPath)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (t *TransportConfig) validate(prefix string) error {
	if t.HandshakeTimeout <= 0 {
		return fmt.Errorf("%s.handshake_timeout must be > 0", prefix)
	}
	if t.WriteTimeout <= 0 {
		return fmt.Errorf("%s.write_timeout must be > 0", prefix)
	}
	if t.CloseTimeout <= 0 {
		return fmt.Errorf("%s.close_timeout must be > 0", prefix)
	}
	if t.PingInterval != nil && *t.PingInterval < 0 {
		return fmt.Errorf("%s.ping_interval must be >= 0", prefix)
	}
	if t.ReadLimit < 0 {
		return fmt.Errorf("%s.read_limit must be >= 0", prefix)
	}
	if t.QueueSize < 1 {
		return fmt.Errorf("%s.queue_size must be >= 1", prefix)
	}
	return nil
}
