// Package transport is the WebSocket layer underneath the connection
// controller.
//
// It exposes a small callback-driven boundary (Transport, Events, Handle) and
// one implementation, Endpoint, built on gorilla/websocket:
//   - Prepare validates a ws:// or wss:// URI and hands out an opaque Handle
//   - Connect, Send and Close only queue work and return immediately
//   - a single event loop goroutine runs every queued task, so callbacks for
//     all connections are delivered one at a time and in per-connection order
//   - Stop drains all sockets (1001 going away) and joins the loop
package transport
