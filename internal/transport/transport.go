package transport

import "context"

// Handle addresses one connection inside a Transport. Handles are never
// reused for the lifetime of a Transport.
type Handle uint64

// Response carries handshake response metadata.
type Response struct {
	StatusCode  int    // HTTP status of the upgrade response (0 if none was received)
	Server      string // Server response header
	Subprotocol string // Negotiated subprotocol
}

// Events receives lifecycle and data callbacks for one connection.
// Methods are invoked from the transport's event loop, one at a time, in the
// order the connection produced them: OnOpen or OnFail exactly once, then zero
// or more OnMessage, then at most one OnClose.
type Events interface {
	OnOpen(h Handle, resp Response)
	OnFail(h Handle, resp Response, err error)
	OnClose(h Handle, code int, reason string)
	OnMessage(h Handle, payload []byte, text bool)
}

// Transport is the WebSocket layer the connection controller drives.
type Transport interface {
	// Start launches the background event loop.
	Start() error

	// Prepare validates uri and allocates a handle. No I/O happens yet.
	Prepare(uri string) (Handle, error)

	// Connect queues the opening handshake for a prepared handle.
	Connect(h Handle, ev Events) error

	// Send queues a text frame on an open connection.
	Send(h Handle, text string) error

	// Close queues a closing handshake on an open connection.
	Close(h Handle, code int, reason string) error

	// Stop drains every connection and joins the event loop.
	Stop(ctx context.Context) error
}
