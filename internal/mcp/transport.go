package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport is a connected channel to one MCP server: it can issue
// synchronous JSON-RPC calls and fire-and-forget notifications, grounded on
// the teacher's stdio/HTTP transport pair.
type Transport interface {
	// Start launches/connects the transport and blocks until it is ready to
	// accept calls, or returns an error.
	Start(ctx context.Context) error

	// Call issues a JSON-RPC request and waits for its matching response.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Notify fires a JSON-RPC notification without waiting for a reply.
	Notify(ctx context.Context, method string, params any) error

	// Close tears the transport down, terminating any underlying process
	// or connection.
	Close(ctx context.Context) error
}

func newTransport(cfg ServerConfig) (Transport, error) {
	switch cfg.Transport {
	case TransportStdio:
		return newStdioTransport(cfg), nil
	case TransportSSE:
		return newSSETransport(cfg), nil
	case TransportWebsocket:
		return newWebsocketTransport(cfg)
	default:
		return nil, fmt.Errorf("mcp: unsupported transport %q", cfg.Transport)
	}
}

func decodeRPCError(resp *jsonrpcResponse) error {
	if resp.Error != nil {
		return fmt.Errorf("mcp: rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}
