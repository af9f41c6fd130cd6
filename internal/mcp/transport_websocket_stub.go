//go:build !tyler_ws

package mcp

import "fmt"

// newWebsocketTransport is stubbed out unless built with -tags tyler_ws,
// keeping github.com/coder/websocket an opt-in dependency rather than one
// every build pays for.
func newWebsocketTransport(cfg ServerConfig) (Transport, error) {
	return nil, fmt.Errorf("mcp: server %q: websocket transport requires building with -tags tyler_ws", cfg.Name)
}
