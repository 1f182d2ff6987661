package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rickgao/wsctl/internal/metrics"
	"github.com/rickgao/wsctl/internal/transport"
)

// Controller is the operator-facing API. Connect, Send and Close queue work
// on the transport and never wait for the network.
type Controller struct {
	tr        transport.Transport
	registry  *Registry
	bridge    *Bridge
	logger    *slog.Logger
	metrics   *metrics.Metrics
	closeCode int

	// mu orders Connect against Shutdown so no connection is queued after
	// the transport starts draining.
	mu   sync.RWMutex
	shut bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithCloseCode sets the close code Shutdown sends to open connections.
// The default is 1001 (going away).
func WithCloseCode(code int) Option {
	return func(c *Controller) {
		c.closeCode = code
	}
}

// NewController starts tr and returns a controller driving it. If the
// transport cannot start, no controller is returned.
func NewController(tr transport.Transport, opts ...Option) (*Controller, error) {
	c := &Controller{
		tr:        tr,
		registry:  NewRegistry(),
		logger:    slog.Default(),
		closeCode: websocket.CloseGoingAway,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")
	c.bridge = NewBridge(c.registry, c.logger, c.metrics)

	if err := tr.Start(); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	c.logger.Info("controller started", "close_code", c.closeCode)
	return c, nil
}

// Connect begins a handshake with uri and returns the new record's id. The
// id is usable immediately; the handshake outcome shows up later in
// Describe. A connect the transport refuses leaves no record behind.
func (c *Controller) Connect(uri string) (uint64, error) {
	if strings.TrimSpace(uri) == "" {
		c.metrics.ConnectRejected()
		return 0, fmt.Errorf("%w: empty uri", ErrInvalidRequest)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.shut {
		c.metrics.ConnectRejected()
		return 0, ErrShutdown
	}

	h, err := c.tr.Prepare(uri)
	if err != nil {
		c.metrics.ConnectRejected()
		if errors.Is(err, transport.ErrInvalidURI) {
			return 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTransportInit, err)
	}

	// The record must exist before the transport can deliver its first event.
	id := c.registry.Create(uri, h)
	c.metrics.RecordCreated(Connecting.String())
	if err := c.tr.Connect(h, c.bridge.Bind(id)); err != nil {
		c.registry.remove(id)
		c.metrics.RecordRemoved(Connecting.String())
		c.metrics.ConnectRejected()
		c.logger.Warn("transport refused connection", "uri", uri, "handle", h, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrTransportInit, err)
	}

	c.metrics.ConnectAccepted()
	snap, _ := c.registry.Get(id)
	c.logger.Info("connection created", "conn_id", id, "session", snap.Session, "uri", uri, "handle", h)
	return id, nil
}

// Send queues msg as a text frame. The message is logged as sent even if the
// transport refuses it; a refusal does not change the record's status.
func (c *Controller) Send(id uint64, msg string) error {
	h, ok := c.registry.Handle(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchConnection, id)
	}

	c.bridge.OnSent(id, msg)
	err := c.tr.Send(h, msg)
	c.metrics.MessageSent(err)
	if err != nil {
		c.logger.Debug("send refused", "conn_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrTransportSend, err)
	}
	return nil
}

// Close requests a closing handshake. The record becomes Closed only when
// the transport reports the close.
func (c *Controller) Close(id uint64, code int, reason string) error {
	h, ok := c.registry.Handle(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchConnection, id)
	}

	if err := c.tr.Close(h, code, reason); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportClose, err)
	}
	c.logger.Debug("close requested", "conn_id", id, "code", code, "reason", reason)
	return nil
}

// Describe returns a copy of the record for id.
func (c *Controller) Describe(id uint64) (Snapshot, bool) {
	return c.registry.Get(id)
}

// List returns a copy of every record in id order.
func (c *Controller) List() []Snapshot {
	out := make([]Snapshot, 0, c.registry.Len())
	c.registry.ForEach(func(s Snapshot) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Counts returns the number of records per status.
func (c *Controller) Counts() map[Status]int {
	return c.registry.Counts()
}

// Shutdown closes every open connection, then stops the transport and waits
// for it to deliver the remaining events. Later calls return the first
// call's result.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.shutdown(ctx)
	})
	return c.shutdownErr
}

func (c *Controller) shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shut = true
	c.mu.Unlock()

	c.registry.ForEach(func(s Snapshot) bool {
		if s.Status != Open {
			return true
		}
		c.logger.Info("closing connection", "conn_id", s.ID, "code", c.closeCode)
		h, _ := c.registry.Handle(s.ID)
		if err := c.tr.Close(h, c.closeCode, ""); err != nil {
			c.logger.Warn("close on shutdown failed", "conn_id", s.ID, "error", err)
		}
		return true
	})

	if err := c.tr.Stop(ctx); err != nil {
		c.logger.Error("transport stop failed", "error", err)
		return fmt.Errorf("stop transport: %w", err)
	}

	counts := c.registry.Counts()
	c.logger.Info("controller stopped",
		"records", c.registry.Len(),
		"closed", counts[Closed],
		"failed", counts[Failed],
	)
	return nil
}
