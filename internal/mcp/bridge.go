package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/flores8/tyler/internal/toolruntime"
)

// connectedServer pairs a live transport with its server name, so Cleanup
// can tear transports down in reverse order.
type connectedServer struct {
	name      string
	transport Transport
}

// Bridge connects to every configured MCP server, discovers each server's
// tools, and registers a ToolProxy for each into a toolruntime.Runtime
// under a `<server>-<tool>` name (spec.md §4.4).
type Bridge struct {
	log     *slog.Logger
	mu      sync.Mutex
	servers []connectedServer
}

// NewBridge creates an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{log: slog.Default().With("component", "mcp.bridge")}
}

// Initialize connects to each server in configs in order. A server whose
// Required field is false is skipped (with a warning logged) on connect or
// discovery failure; a required server's failure aborts Initialize and
// rolls back any servers already connected in this call.
func (b *Bridge) Initialize(ctx context.Context, configs []ServerConfig, runtime *toolruntime.Runtime) error {
	var connectedThisCall []connectedServer

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			if cfg.Required {
				b.rollback(ctx, connectedThisCall)
				return fmt.Errorf("mcp: invalid config for server %q: %w", cfg.Name, err)
			}
			b.log.Warn("skipping optional server with invalid config", "server", cfg.Name, "error", err)
			continue
		}

		transport, err := newTransport(cfg)
		if err != nil {
			if cfg.Required {
				b.rollback(ctx, connectedThisCall)
				return fmt.Errorf("mcp: server %q: %w", cfg.Name, err)
			}
			b.log.Warn("skipping optional server", "server", cfg.Name, "error", err)
			continue
		}

		startCtx, cancel := context.WithTimeout(ctx, cfg.startupTimeout())
		err = transport.Start(startCtx)
		cancel()
		if err != nil {
			if cfg.Required {
				b.rollback(ctx, connectedThisCall)
				return fmt.Errorf("mcp: server %q: failed to start: %w", cfg.Name, err)
			}
			b.log.Warn("optional server failed to start", "server", cfg.Name, "error", err)
			continue
		}

		if _, err := transport.Call(ctx, "initialize", map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo":      map[string]any{"name": "tyler", "version": "0.1.0"},
		}); err != nil {
			_ = transport.Close(ctx)
			if cfg.Required {
				b.rollback(ctx, connectedThisCall)
				return fmt.Errorf("mcp: server %q: initialize handshake failed: %w", cfg.Name, err)
			}
			b.log.Warn("optional server failed handshake", "server", cfg.Name, "error", err)
			continue
		}

		tools, err := b.listTools(ctx, transport)
		if err != nil {
			_ = transport.Close(ctx)
			if cfg.Required {
				b.rollback(ctx, connectedThisCall)
				return fmt.Errorf("mcp: server %q: list tools: %w", cfg.Name, err)
			}
			b.log.Warn("optional server failed to list tools", "server", cfg.Name, "error", err)
			continue
		}

		for _, tool := range tools {
			proxy := &ToolProxy{
				serverName:   cfg.Name,
				originalName: tool.Name,
				description:  tool.Description,
				schema:       tool.InputSchema,
				transport:    transport,
			}
			qualified := qualifiedName(cfg.Name, tool.Name)
			runtime.RegisterTool(qualified, proxy, proxy.definition(qualified))
			runtime.RegisterToolAttributes(qualified, map[string]any{
				"source":        "mcp",
				"server":        cfg.Name,
				"original_name": tool.Name,
			})
		}

		b.log.Info("connected mcp server", "server", cfg.Name, "tools", len(tools))
		connectedThisCall = append(connectedThisCall, connectedServer{name: cfg.Name, transport: transport})
	}

	b.mu.Lock()
	b.servers = append(b.servers, connectedThisCall...)
	b.mu.Unlock()
	return nil
}

func (b *Bridge) listTools(ctx context.Context, transport Transport) ([]RemoteTool, error) {
	raw, err := transport.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// qualifiedName namespaces a remote tool as `<server>-<tool>`, with dots in
// either segment normalized to underscores (spec.md §3/§6).
func qualifiedName(server, tool string) string {
	s := strings.ReplaceAll(server, ".", "_")
	t := strings.ReplaceAll(tool, ".", "_")
	return s + "-" + t
}

func (b *Bridge) rollback(ctx context.Context, servers []connectedServer) {
	for i := len(servers) - 1; i >= 0; i-- {
		_ = servers[i].transport.Close(ctx)
	}
}

// Cleanup closes every connected server's transport in reverse connection
// order, tolerating individual close failures so one stuck server doesn't
// block the rest from shutting down.
func (b *Bridge) Cleanup(ctx context.Context) error {
	b.mu.Lock()
	servers := b.servers
	b.servers = nil
	b.mu.Unlock()

	var firstErr error
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].transport.Close(ctx); err != nil {
			b.log.Warn("error closing server", "server", servers[i].name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
