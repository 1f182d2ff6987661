package config

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/wsctl/internal/version"
)

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultCloseTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultQueueSize        = 1024
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultCloseCode        = websocket.CloseGoingAway
	DefaultInspectAddr      = "127.0.0.1:9090"
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = uuid.NewString()
	}

	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.CloseTimeout == 0 {
		c.Transport.CloseTimeout = DefaultCloseTimeout
	}
	if c.Transport.PingInterval == nil {
		d := DefaultPingInterval
		c.Transport.PingInterval = &d
	}
	if c.Transport.QueueSize == 0 {
		c.Transport.QueueSize = DefaultQueueSize
	}
	if c.Transport.UserAgent == "" {
		c.Transport.UserAgent = version.UserAgent()
	}

	// Shutdown defaults
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultShutdownTimeout
	}
	if c.Shutdown.CloseCode == 0 {
		c.Shutdown.CloseCode = DefaultCloseCode
	}

	// Inspect defaults
	if c.Inspect.Enabled == nil {
		enabled := true
		c.Inspect.Enabled = &enabled
	}
	if c.Inspect.Addr == "" {
		c.Inspect.Addr = DefaultInspectAddr
	}
	if c.Inspect.MetricsPath == "" {
		c.Inspect.MetricsPath = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
