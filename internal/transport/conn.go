package transport

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// connState tracks a socket through its lifetime. It only moves forward.
type connState int32

const (
	connPrepared connState = iota
	connConnecting
	connOpen
	connClosing
	connDone
)

// conn is the endpoint's view of one handle.
type conn struct {
	handle Handle
	uri    string
	logger *slog.Logger
	events Events

	state atomic.Int32

	mu         sync.Mutex
	ws         *websocket.Conn
	closeTimer *time.Timer
}

func (c *conn) load() connState {
	return connState(c.state.Load())
}

func (c *conn) setState(s connState) {
	c.state.Store(int32(s))
}

func (c *conn) socket() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *conn) setSocket(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

// armCloseTimer drops the socket if the peer never answers our close frame.
func (c *conn) armCloseTimer(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.ws
	c.closeTimer = time.AfterFunc(d, func() {
		c.logger.Warn("peer did not answer close, dropping socket", "timeout", d)
		ws.Close()
	})
}

func (c *conn) stopCloseTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
}

// read pumps frames from the socket into the endpoint's queue until the
// socket fails or a close frame arrives.
func (e *Endpoint) read(c *conn, ws *websocket.Conn) {
	defer e.workers.Done()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			code, reason := closeStatus(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read ended", "code", code, "error", err)
			}
			e.queue.Push(func() { e.closed(c, code, reason) })
			return
		}

		text := messageType == websocket.TextMessage
		e.queue.Push(func() { c.events.OnMessage(c.handle, data, text) })
	}
}

// closeStatus extracts the peer's close code and reason from a read error.
// Anything other than a close frame is reported as an abnormal closure.
func closeStatus(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
