// wsctl opens, inspects, messages and closes many WebSocket connections from
// one interactive console.
// Usage: wsctl --config configs/wsctl.example.yaml
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
