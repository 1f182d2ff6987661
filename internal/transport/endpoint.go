package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type endpointState int

const (
	stateIdle endpointState = iota
	stateRunning
	stateStopping
	stateStopped
)

// Endpoint implements Transport on top of gorilla/websocket.
//
// One loop goroutine executes every queued task: it is the only goroutine
// that invokes Events and writes data frames. Dialers and per-socket readers
// never touch callbacks directly, they queue work for the loop.
type Endpoint struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer
	header http.Header

	queue *Queue[func()]

	mu         sync.Mutex
	conns      map[Handle]*conn
	nextHandle Handle
	state      endpointState

	ctx    context.Context
	cancel context.CancelFunc

	live    sync.WaitGroup // connected handles still waiting for OnFail/OnClose
	workers sync.WaitGroup // dialers, readers, heartbeat
	done    chan struct{}  // closed when the loop exits

	stopOnce sync.Once
	stopErr  error
}

var _ Transport = (*Endpoint)(nil)

// EndpointStats describes the endpoint for health reporting.
type EndpointStats struct {
	Handles int
	Open    int
	Queue   QueueStats
}

// NewEndpoint creates an endpoint. Call Start before use.
func NewEndpoint(cfg Config, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}

	header := cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if cfg.UserAgent != "" {
		header.Set("User-Agent", cfg.UserAgent)
	}

	return &Endpoint{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		header:     header,
		queue:      NewQueue[func()](cfg.QueueSize),
		conns:      make(map[Handle]*conn),
		nextHandle: 1,
		done:       make(chan struct{}),
	}
}

// Start launches the event loop and, if configured, the heartbeat.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopping, stateStopped:
		return ErrStopped
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.state = stateRunning

	go e.run()

	if e.cfg.PingInterval > 0 {
		e.workers.Add(1)
		go e.heartbeat()
	}

	e.logger.Debug("endpoint started",
		"ping_interval", e.cfg.PingInterval,
		"queue_size", e.cfg.QueueSize,
	)
	return nil
}

// Prepare validates uri and allocates a handle for it.
func (e *Endpoint) Prepare(uri string) (Handle, error) {
	u, err := parseURI(uri)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.runningLocked(); err != nil {
		return 0, err
	}

	h := e.nextHandle
	e.nextHandle++
	e.conns[h] = &conn{
		handle: h,
		uri:    u.String(),
		logger: e.logger.With("handle", uint64(h), "uri", u.String()),
	}
	return h, nil
}

// Connect queues the opening handshake for h. ev receives every later event.
func (e *Endpoint) Connect(h Handle, ev Events) error {
	e.mu.Lock()
	if err := e.runningLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	c, ok := e.conns[h]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownHandle
	}
	if c.load() != connPrepared {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.events = ev
	c.setState(connConnecting)
	e.live.Add(1)
	e.workers.Add(1)
	e.mu.Unlock()

	e.queue.Push(func() { go e.dial(c) })
	return nil
}

// Send queues a text frame. Only open connections accept frames.
func (e *Endpoint) Send(h Handle, text string) error {
	c, err := e.lookup(h)
	if err != nil {
		return err
	}
	if c.load() != connOpen {
		return ErrNotOpen
	}
	if !e.queue.Push(func() { e.write(c, text) }) {
		return ErrStopped
	}
	return nil
}

// Close queues a closing handshake. The connection is reported closed via
// OnClose once the peer answers or the close timeout drops the socket.
func (e *Endpoint) Close(h Handle, code int, reason string) error {
	if !ValidCloseCode(code) {
		return fmt.Errorf("%w: %d", ErrInvalidCloseCode, code)
	}
	if len(reason) > MaxCloseReason {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrReasonTooLong, len(reason), MaxCloseReason)
	}

	c, err := e.lookup(h)
	if err != nil {
		return err
	}
	if c.load() != connOpen {
		return ErrNotOpen
	}
	if !e.queue.Push(func() { e.closeConn(c, code, reason) }) {
		return ErrStopped
	}
	return nil
}

// Stop refuses new connections, aborts pending handshakes, closes open
// sockets with 1001 and waits until every connected handle has delivered its
// final event. If ctx expires first the remaining sockets are dropped and
// their events are still delivered before Stop returns.
func (e *Endpoint) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.stopErr = e.stop(ctx)
	})
	return e.stopErr
}

func (e *Endpoint) stop(ctx context.Context) error {
	e.mu.Lock()
	started := e.state == stateRunning
	e.state = stateStopping
	e.mu.Unlock()

	if !started {
		e.setState(stateStopped)
		return nil
	}

	e.logger.Info("stopping endpoint", "open", e.Stats().Open)

	e.cancel()
	e.queue.Push(e.closeAll)

	var err error
	if !wait(ctx, &e.live) {
		err = ctx.Err()
		e.logger.Warn("endpoint drain timed out, dropping sockets")
		e.dropAll()
		e.live.Wait()
	}

	e.workers.Wait()
	e.queue.Close()
	<-e.done

	e.setState(stateStopped)
	qs := e.queue.Stats()
	e.logger.Info("endpoint stopped", "tasks", qs.Popped, "queue_resizes", qs.Resizes)
	return err
}

// Stats returns current endpoint statistics.
func (e *Endpoint) Stats() EndpointStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := 0
	for _, c := range e.conns {
		if s := c.load(); s == connOpen || s == connClosing {
			open++
		}
	}
	return EndpointStats{
		Handles: len(e.conns),
		Open:    open,
		Queue:   e.queue.Stats(),
	}
}

// run is the event loop.
func (e *Endpoint) run() {
	defer close(e.done)

	for {
		task, ok := e.queue.Pop()
		if !ok {
			return
		}
		task()
	}
}

// dial performs the handshake off the loop and queues its outcome. On
// success the open event is queued before the reader starts, so OnOpen
// always precedes the connection's messages.
func (e *Endpoint) dial(c *conn) {
	defer e.workers.Done()

	ws, resp, err := e.dialer.DialContext(e.ctx, c.uri, e.header)
	info := responseInfo(resp)
	if err != nil {
		e.queue.Push(func() { e.failed(c, info, err) })
		return
	}

	if e.cfg.ReadLimit > 0 {
		ws.SetReadLimit(e.cfg.ReadLimit)
	}
	info.Subprotocol = ws.Subprotocol()
	c.setSocket(ws)

	e.queue.Push(func() { e.opened(c, info) })

	e.workers.Add(1)
	go e.read(c, ws)
}

func (e *Endpoint) opened(c *conn, info Response) {
	c.setState(connOpen)
	c.logger.Debug("websocket open", "server", info.Server, "status", info.StatusCode)
	c.events.OnOpen(c.handle, info)

	if e.stopping() {
		e.closeConn(c, websocket.CloseGoingAway, "")
	}
}

func (e *Endpoint) failed(c *conn, info Response, err error) {
	c.setState(connDone)
	c.logger.Debug("websocket handshake failed", "status", info.StatusCode, "error", err)
	c.events.OnFail(c.handle, info, err)
	e.live.Done()
}

func (e *Endpoint) closed(c *conn, code int, reason string) {
	c.stopCloseTimer()
	if ws := c.socket(); ws != nil {
		ws.Close()
	}
	c.setState(connDone)
	c.logger.Debug("websocket closed", "code", code, "reason", reason)
	c.events.OnClose(c.handle, code, reason)
	e.live.Done()
}

func (e *Endpoint) write(c *conn, text string) {
	if c.load() != connOpen {
		c.logger.Debug("dropping frame, connection no longer open")
		return
	}

	ws := c.socket()
	ws.SetWriteDeadline(e.deadline())
	if err := ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.logger.Warn("write failed, dropping socket", "error", err)
		ws.Close()
	}
}

func (e *Endpoint) closeConn(c *conn, code int, reason string) {
	if c.load() != connOpen {
		return
	}
	c.setState(connClosing)

	ws := c.socket()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := ws.WriteControl(websocket.CloseMessage, msg, e.deadline()); err != nil {
		c.logger.Warn("close frame write failed, dropping socket", "error", err)
		ws.Close()
		return
	}
	c.armCloseTimer(e.cfg.CloseTimeout)
}

func (e *Endpoint) closeAll() {
	for _, c := range e.snapshot() {
		if c.load() == connOpen {
			c.logger.Info("closing connection", "code", websocket.CloseGoingAway)
			e.closeConn(c, websocket.CloseGoingAway, "")
		}
	}
}

// dropAll closes every socket without a close handshake.
func (e *Endpoint) dropAll() {
	for _, c := range e.snapshot() {
		if ws := c.socket(); ws != nil && c.load() != connDone {
			ws.Close()
		}
	}
}

func (e *Endpoint) pingAll() {
	for _, c := range e.snapshot() {
		if c.load() != connOpen {
			continue
		}
		if err := c.socket().WriteControl(websocket.PingMessage, []byte("keepalive"), e.deadline()); err != nil {
			c.logger.Debug("failed to send ping", "error", err)
		}
	}
}

// heartbeat queues a ping pass every PingInterval until Stop.
func (e *Endpoint) heartbeat() {
	defer e.workers.Done()

	ticker := time.NewTicker(e.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.queue.Push(e.pingAll)
		}
	}
}

func (e *Endpoint) lookup(h Handle) (*conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conns[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return c, nil
}

func (e *Endpoint) snapshot() []*conn {
	e.mu.Lock()
	defer e.mu.Unlock()

	conns := make([]*conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

func (e *Endpoint) runningLocked() error {
	switch e.state {
	case stateIdle:
		return ErrNotStarted
	case stateRunning:
		return nil
	}
	return ErrStopped
}

func (e *Endpoint) stopping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != stateRunning
}

func (e *Endpoint) setState(s endpointState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// deadline returns the write deadline for the next frame (zero = none).
func (e *Endpoint) deadline() time.Time {
	if e.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(e.cfg.WriteTimeout)
}

func responseInfo(resp *http.Response) Response {
	if resp == nil {
		return Response{}
	}
	return Response{
		StatusCode: resp.StatusCode,
		Server:     resp.Header.Get("Server"),
	}
}

func parseURI(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURI)
	}
	return u, nil
}

// wait blocks until wg finishes or ctx is done. Reports whether wg finished.
func wait(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
