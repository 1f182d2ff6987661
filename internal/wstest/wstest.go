// Package wstest provides in-process WebSocket servers for tests.
package wstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ServerName is the Server header sent on every upgrade response.
const ServerName = "wstest/1.0"

// NewServer starts a test WebSocket server that runs handler for each
// upgraded connection. Close frames are echoed with the peer's code and
// reason. The server is closed when the test ends.
func NewServer(t testing.TB, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, http.Header{"Server": []string{ServerName}})
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		conn.SetCloseHandler(func(code int, text string) error {
			return conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
		})
		handler(conn)
	}))
	t.Cleanup(server.Close)

	return server
}

// NewRejectingServer starts a plain HTTP server that refuses every upgrade
// with the given status.
func NewRejectingServer(t testing.TB, status int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", ServerName)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	return server
}

// URL converts an httptest server URL to its ws:// form.
func URL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// Echo answers every text frame with "Hello, you sent: <msg>" and every
// binary frame with the same bytes. It sends a welcome text first.
func Echo(conn *websocket.Conn) {
	if err := conn.WriteMessage(websocket.TextMessage, []byte("Welcome to the WebSocket server!")); err != nil {
		return
	}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.TextMessage {
			data = append([]byte("Hello, you sent: "), data...)
		}
		if err := conn.WriteMessage(messageType, data); err != nil {
			return
		}
	}
}

// Drain reads until the connection fails.
func Drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
