package transport

import "errors"

// Errors
var (
	ErrInvalidURI       = errors.New("invalid websocket uri")
	ErrUnknownHandle    = errors.New("unknown connection handle")
	ErrNotOpen          = errors.New("connection not open")
	ErrAlreadyConnected = errors.New("handle already connected")
	ErrInvalidCloseCode = errors.New("invalid close code")
	ErrReasonTooLong    = errors.New("close reason too long")
	ErrStopped          = errors.New("endpoint stopped")
	ErrAlreadyStarted   = errors.New("endpoint already started")
	ErrNotStarted       = errors.New("endpoint not started")
)
