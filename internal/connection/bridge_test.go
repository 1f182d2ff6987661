package connection

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/wsctl/internal/transport"
)

func TestBridge_BindAddressesRecord(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)

	first := r.Create("ws://host/a", 1)
	second := r.Create("ws://host/b", 2)

	ev := b.Bind(second)
	ev.OnOpen(99, transport.Response{Server: "srv"})
	ev.OnMessage(99, []byte("hi"), true)

	snap, _ := r.Get(second)
	assert.Equal(t, Open, snap.Status)
	assert.Equal(t, "srv", snap.RemoteServer)
	assert.Equal(t, []string{"hi"}, snap.Messages)

	untouched, _ := r.Get(first)
	assert.Equal(t, Connecting, untouched.Status)
	assert.Empty(t, untouched.Messages)
}

func TestBridge_CloseOverwritesReason(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)
	id := r.Create("ws://host/a", 1)

	b.OnOpen(id, transport.Response{})
	r.Mutate(id, func(rec *Record) { rec.errorReason = "stale" })
	b.OnClose(id, 1006, "unexpected EOF")

	snap, _ := r.Get(id)
	assert.Equal(t, Closed, snap.Status)
	assert.Equal(t, "close code: 1006 (Abnormal close), reason: unexpected EOF", snap.ErrorReason)
}

func TestBridge_FailWithoutError(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)
	id := r.Create("ws://host/a", 1)

	b.OnFail(id, transport.Response{}, nil)

	snap, _ := r.Get(id)
	assert.Equal(t, Failed, snap.Status)
	assert.Equal(t, "unknown failure", snap.ErrorReason)
	assert.Empty(t, snap.RemoteServer)
}

func TestBridge_LogsDropsAfterTerminalStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := NewRegistry()
	b := NewBridge(r, logger, nil)
	id := r.Create("ws://host/a", 1)

	b.OnOpen(id, transport.Response{})
	b.OnClose(id, 1000, "bye")
	logs.Reset()

	b.OnClose(id, 1006, "again")
	assert.Contains(t, logs.String(), "dropping event for finished connection")
	assert.NotContains(t, logs.String(), "illegal")

	snap, _ := r.Get(id)
	assert.Equal(t, "close code: 1000 (Normal close), reason: bye", snap.ErrorReason)

	logs.Reset()
	pending := r.Create("ws://host/b", 2)
	b.OnClose(pending, 1000, "early")
	assert.Contains(t, logs.String(), "ignoring illegal status transition")
}

func TestBridge_IllegalTransitionIgnored(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)
	id := r.Create("ws://host/a", 1)

	b.OnClose(id, 1000, "early")
	snap, _ := r.Get(id)
	assert.Equal(t, Connecting, snap.Status)
	assert.Empty(t, snap.ErrorReason)

	b.OnOpen(id, transport.Response{Server: "X"})
	b.OnFail(id, transport.Response{Server: "Y"}, errors.New("late"))
	snap, _ = r.Get(id)
	assert.Equal(t, Open, snap.Status)
	assert.Equal(t, "X", snap.RemoteServer)
	assert.Empty(t, snap.ErrorReason)
}

func TestBridge_MessagesAfterCloseStillLogged(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)
	id := r.Create("ws://host/a", 1)

	b.OnOpen(id, transport.Response{})
	b.OnClose(id, 1000, "")
	b.OnSent(id, "late")

	snap, _ := r.Get(id)
	assert.Equal(t, []string{">> late"}, snap.Messages)
}

func TestBridge_UnknownID(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)

	assert.NotPanics(t, func() {
		b.OnOpen(5, transport.Response{})
		b.OnMessage(5, []byte("x"), true)
		b.OnSent(5, "x")
	})
	assert.Equal(t, 0, r.Len())
}

func TestBridge_ConcurrentConnections(t *testing.T) {
	r := NewRegistry()
	b := NewBridge(r, nil, nil)

	const conns = 16
	const perConn = 100

	ids := make([]uint64, conns)
	for i := range ids {
		ids[i] = r.Create("ws://host/a", transport.Handle(i))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			ev := b.Bind(id)
			ev.OnOpen(0, transport.Response{})
			for i := 0; i < perConn; i++ {
				ev.OnMessage(0, []byte(fmt.Sprintf("%d", i)), true)
			}
			ev.OnClose(0, 1000, "")
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		snap, ok := r.Get(id)
		require.True(t, ok)
		assert.Equal(t, Closed, snap.Status)
		require.Len(t, snap.Messages, perConn)
		for i, msg := range snap.Messages {
			assert.Equal(t, fmt.Sprintf("%d", i), msg)
		}
	}
}
