package transport

import (
	"net/http"
	"time"
)

// Config configures an Endpoint.
type Config struct {
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for data and control frames
	CloseTimeout     time.Duration // How long to wait for the peer to answer our close frame
	PingInterval     time.Duration // Keepalive ping period (0 disables)
	ReadLimit        int64         // Max inbound message size in bytes (0 = unlimited)
	QueueSize        int           // Initial work queue capacity
	UserAgent        string        // Sent as User-Agent on the handshake
	Header           http.Header   // Extra handshake headers
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		CloseTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		QueueSize:        1024,
	}
}
