package connection

import (
	"context"
	"strings"
	"sync"

	"github.com/rickgao/wsctl/internal/transport"
)

type fakeState int

const (
	fakePrepared fakeState = iota
	fakeConnecting
	fakeOpen
	fakeClosing
	fakeDone
)

type closeCall struct {
	handle transport.Handle
	code   int
	reason string
}

// fakeTransport is a scripted Transport. Tests fire events by hand; Stop
// answers pending closes and fails pending handshakes like Endpoint does.
type fakeTransport struct {
	startErr   error
	connectErr error

	mu      sync.Mutex
	next    transport.Handle
	state   map[transport.Handle]fakeState
	events  map[transport.Handle]transport.Events
	sent    []string
	closes  []closeCall
	stopped bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		next:   1,
		state:  make(map[transport.Handle]fakeState),
		events: make(map[transport.Handle]transport.Events),
	}
}

func (f *fakeTransport) Start() error { return f.startErr }

func (f *fakeTransport) Prepare(uri string) (transport.Handle, error) {
	if !strings.HasPrefix(uri, "ws://") && !strings.HasPrefix(uri, "wss://") {
		return 0, transport.ErrInvalidURI
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return 0, transport.ErrStopped
	}
	h := f.next
	f.next++
	f.state[h] = fakePrepared
	return h, nil
}

func (f *fakeTransport) Connect(h transport.Handle, ev transport.Events) error {
	if f.connectErr != nil {
		return f.connectErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[h] = ev
	f.state[h] = fakeConnecting
	return nil
}

func (f *fakeTransport) Send(h transport.Handle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state[h] != fakeOpen {
		return transport.ErrNotOpen
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) Close(h transport.Handle, code int, reason string) error {
	if !transport.ValidCloseCode(code) {
		return transport.ErrInvalidCloseCode
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state[h] != fakeOpen {
		return transport.ErrNotOpen
	}
	f.state[h] = fakeClosing
	f.closes = append(f.closes, closeCall{handle: h, code: code, reason: reason})
	return nil
}

func (f *fakeTransport) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = true
	var pending []func()
	for h, s := range f.state {
		ev := f.events[h]
		switch s {
		case fakeConnecting:
			pending = append(pending, func() { ev.OnFail(h, transport.Response{}, context.Canceled) })
		case fakeClosing:
			code, reason := f.closeFor(h)
			pending = append(pending, func() { ev.OnClose(h, code, reason) })
		case fakeOpen:
			pending = append(pending, func() { ev.OnClose(h, 1001, "") })
		}
		f.state[h] = fakeDone
	}
	f.mu.Unlock()

	for _, fire := range pending {
		fire()
	}
	return nil
}

// closeFor returns the last close requested on h. Caller must hold f.mu.
func (f *fakeTransport) closeFor(h transport.Handle) (int, string) {
	for i := len(f.closes) - 1; i >= 0; i-- {
		if f.closes[i].handle == h {
			return f.closes[i].code, f.closes[i].reason
		}
	}
	return 1005, ""
}

func (f *fakeTransport) handle(id uint64) transport.Handle {
	return transport.Handle(id + 1)
}

func (f *fakeTransport) fire(h transport.Handle, next fakeState, fn func(transport.Events)) {
	f.mu.Lock()
	ev := f.events[h]
	f.state[h] = next
	f.mu.Unlock()
	fn(ev)
}

func (f *fakeTransport) open(h transport.Handle, server string) {
	f.fire(h, fakeOpen, func(ev transport.Events) {
		ev.OnOpen(h, transport.Response{StatusCode: 101, Server: server})
	})
}

func (f *fakeTransport) fail(h transport.Handle, err error) {
	f.fire(h, fakeDone, func(ev transport.Events) {
		ev.OnFail(h, transport.Response{StatusCode: 403, Server: "fake"}, err)
	})
}

func (f *fakeTransport) message(h transport.Handle, payload []byte, text bool) {
	f.mu.Lock()
	ev := f.events[h]
	f.mu.Unlock()
	ev.OnMessage(h, payload, text)
}

func (f *fakeTransport) remoteClose(h transport.Handle, code int, reason string) {
	f.fire(h, fakeDone, func(ev transport.Events) {
		ev.OnClose(h, code, reason)
	})
}

func (f *fakeTransport) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) closeCalls() []closeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]closeCall(nil), f.closes...)
}
