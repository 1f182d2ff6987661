package inspect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/wsctl/internal/connection"
	"github.com/rickgao/wsctl/internal/metrics"
	"github.com/rickgao/wsctl/internal/transport"
)

type stubSource struct {
	snaps []connection.Snapshot
}

func (s stubSource) Describe(id uint64) (connection.Snapshot, bool) {
	for _, snap := range s.snaps {
		if snap.ID == id {
			return snap, true
		}
	}
	return connection.Snapshot{}, false
}

func (s stubSource) List() []connection.Snapshot { return s.snaps }

func (s stubSource) Counts() map[connection.Status]int {
	counts := map[connection.Status]int{}
	for _, st := range connection.Statuses {
		counts[st] = 0
	}
	for _, snap := range s.snaps {
		counts[snap.Status]++
	}
	return counts
}

type stubStats struct{ stats transport.EndpointStats }

func (s stubStats) Stats() transport.EndpointStats { return s.stats }

func newTestServer(opts ...Option) *Server {
	src := stubSource{snaps: []connection.Snapshot{
		{ID: 0, URI: "ws://host/a", Status: connection.Open, RemoteServer: "X", Messages: []string{"hi"}},
		{ID: 1, URI: "ws://host/b", Status: connection.Failed, ErrorReason: "refused"},
	}}
	return NewServer(Config{InstanceID: "test-1"}, src, opts...)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	stats := transport.EndpointStats{
		Handles: 2,
		Open:    1,
		Queue:   transport.QueueStats{Count: 4, Capacity: 16, Pushed: 40, Popped: 36, Resizes: 1},
	}
	h := newTestServer(WithStats(stubStats{stats: stats})).Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test-1", body.Instance)
	assert.Equal(t, 1, body.Sockets)
	require.NotNil(t, body.Queue)
	assert.Equal(t, stats.Queue, *body.Queue)
	assert.Equal(t, map[string]int{"Connecting": 0, "Open": 1, "Failed": 1, "Closed": 0}, body.Connections)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	queue := raw["queue"].(map[string]any)
	assert.EqualValues(t, 4, queue["depth"])
	assert.EqualValues(t, 16, queue["capacity"])
	assert.EqualValues(t, 1, queue["resizes"])
}

func TestHealthWithoutStats(t *testing.T) {
	rec := get(t, newTestServer().Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "queue")
}

func TestListConnections(t *testing.T) {
	h := newTestServer().Handler()

	rec := get(t, h, "/connections")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "Open", body[0]["status"])
	assert.Equal(t, "ws://host/b", body[1]["uri"])
}

func TestListConnectionsByStatus(t *testing.T) {
	h := newTestServer().Handler()

	rec := get(t, h, "/connections?status=Failed")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []connection.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, uint64(1), body[0].ID)

	rec = get(t, h, "/connections?status=Closed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = get(t, h, "/connections?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown status")
}

func TestDescribeConnection(t *testing.T) {
	h := newTestServer().Handler()

	rec := get(t, h, "/connections/0")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap connection.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, connection.Open, snap.Status)
	assert.Equal(t, "X", snap.RemoteServer)
	assert.Equal(t, []string{"hi"}, snap.Messages)

	rec = get(t, h, "/connections/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no such connection"}`, rec.Body.String())

	rec = get(t, h, "/connections/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/connections", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test-1")
	m.ConnectAccepted()

	s := NewServer(Config{MetricsPath: "/custom-metrics"}, stubSource{}, WithGatherer(reg))
	rec := get(t, s.Handler(), "/custom-metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wsctl_connection_connects_total")
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"}, stubSource{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewServer(Config{Addr: ln.Addr().String()}, stubSource{})
	err = s.Run(context.Background())
	assert.Error(t, err)
}
