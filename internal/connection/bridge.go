package connection

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/wsctl/internal/metrics"
	"github.com/rickgao/wsctl/internal/transport"
)

// Bridge applies transport events to registry records. It is the only code
// that changes a record after creation. The transport delivers at most one
// event per connection at a time; the registry serializes everything else.
type Bridge struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewBridge creates a bridge over registry. m may be nil.
func NewBridge(registry *Registry, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// Bind returns transport callbacks that address the record id.
func (b *Bridge) Bind(id uint64) transport.Events {
	return boundEvents{bridge: b, id: id}
}

// OnOpen marks the record Open and records the server identity.
func (b *Bridge) OnOpen(id uint64, resp transport.Response) {
	b.transition(id, Open, func(r *Record) {
		r.remoteServer = resp.Server
	}, "server", resp.Server)
}

// OnFail marks the record Failed with the handshake error.
func (b *Bridge) OnFail(id uint64, resp transport.Response, err error) {
	reason := "unknown failure"
	if err != nil {
		reason = err.Error()
	}
	b.transition(id, Failed, func(r *Record) {
		if resp.Server != "" {
			r.remoteServer = resp.Server
		}
		r.errorReason = reason
	}, "status_code", resp.StatusCode, "error", reason)
}

// OnClose marks the record Closed. The close explanation replaces any
// earlier reason.
func (b *Bridge) OnClose(id uint64, code int, reason string) {
	b.transition(id, Closed, func(r *Record) {
		r.errorReason = CloseReason(code, reason)
	}, "code", code, "reason", reason)
}

// OnMessage appends an inbound payload. Binary payloads are hex encoded.
func (b *Bridge) OnMessage(id uint64, payload []byte, text bool) {
	entry := string(payload)
	if !text {
		entry = hex.EncodeToString(payload)
	}
	if !b.appendMessage(id, entry) {
		return
	}
	b.metrics.MessageReceived(text)
	b.logger.Debug("message received", "conn_id", id, "bytes", len(payload), "text", text)
}

// OnSent appends an outbound message tagged as sent.
func (b *Bridge) OnSent(id uint64, msg string) {
	b.appendMessage(id, sentPrefix+msg)
}

func (b *Bridge) appendMessage(id uint64, entry string) bool {
	ok := b.registry.Mutate(id, func(r *Record) {
		r.messages = append(r.messages, entry)
	})
	if !ok {
		b.logger.Warn("message for unknown connection", "conn_id", id)
	}
	return ok
}

// transition moves the record to next and runs apply under the record lock.
// Illegal moves leave the record untouched.
func (b *Bridge) transition(id uint64, next Status, apply func(*Record), attrs ...any) {
	var from Status
	var moved bool

	ok := b.registry.Mutate(id, func(r *Record) {
		from = r.status
		if !from.CanTransition(next) {
			return
		}
		r.status = next
		apply(r)
		moved = true
	})

	switch {
	case !ok:
		b.logger.Warn("event for unknown connection", "conn_id", id, "event", next)
	case !moved && from.Terminal():
		b.logger.Debug("dropping event for finished connection", "conn_id", id, "status", from, "event", next)
	case !moved:
		b.logger.Warn("ignoring illegal status transition", "conn_id", id, "from", from, "to", next)
	default:
		b.metrics.StatusChanged(from.String(), next.String())
		b.logger.Info("connection "+strings.ToLower(next.String()), append([]any{"conn_id", id}, attrs...)...)
	}
}

// CloseReason formats a close code and reason for display.
func CloseReason(code int, reason string) string {
	return fmt.Sprintf("close code: %d (%s), reason: %s", code, transport.CloseCodeText(code), reason)
}

// boundEvents adapts the bridge to one record. The transport handle is
// ignored; the record id was fixed when the callbacks were bound.
type boundEvents struct {
	bridge *Bridge
	id     uint64
}

func (e boundEvents) OnOpen(_ transport.Handle, resp transport.Response) {
	e.bridge.OnOpen(e.id, resp)
}

func (e boundEvents) OnFail(_ transport.Handle, resp transport.Response, err error) {
	e.bridge.OnFail(e.id, resp, err)
}

func (e boundEvents) OnClose(_ transport.Handle, code int, reason string) {
	e.bridge.OnClose(e.id, code, reason)
}

func (e boundEvents) OnMessage(_ transport.Handle, payload []byte, text bool) {
	e.bridge.OnMessage(e.id, payload, text)
}
