package connection

import (
	"errors"
	"fmt"
)

// Error kinds returned by the Controller. Transport causes are wrapped
// alongside the kind, so both can be matched with errors.Is.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNoSuchConnection = fmt.Errorf("%w: no such connection", ErrInvalidRequest)
	ErrTransportInit    = errors.New("transport init failed")
	ErrTransportSend    = errors.New("transport send failed")
	ErrTransportClose   = errors.New("transport close failed")
	ErrShutdown         = errors.New("controller shut down")
)
