// Package connection tracks operator-initiated WebSocket connections.
//
// A Controller owns a Registry of Records and a Transport. Connect, Send and
// Close only queue work on the transport and return immediately; the
// transport's event loop reports the outcome through a Bridge, which is the
// only writer of record state. Describe returns a deep copy of a record so
// callers never observe a half-applied event.
//
// Record lifecycle:
//
//	Connecting --open--> Open --close--> Closed
//	Connecting --fail--> Failed
//
// Failed and Closed are terminal. Closed records stay in the registry as
// history and their ids are never reused.
package connection
