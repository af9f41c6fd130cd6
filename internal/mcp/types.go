// Package mcp bridges external tool providers speaking the Model Context
// Protocol into toolruntime, discovering their tools and registering proxy
// Tool implementations (spec.md §4.4).
package mcp

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TransportKind selects the wire transport used to reach a server.
type TransportKind string

const (
	TransportStdio     TransportKind = "stdio"
	TransportSSE       TransportKind = "sse"
	TransportWebsocket TransportKind = "websocket"
)

// ServerConfig describes one external tool provider (spec.md §4.4).
type ServerConfig struct {
	Name      string        `yaml:"name" json:"name"`
	Transport TransportKind `yaml:"transport" json:"transport"`
	Required  bool          `yaml:"required" json:"required"`

	// stdio
	Command string            `yaml:"command" json:"command,omitempty"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`

	// sse / websocket
	URL     string            `yaml:"url" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	StartupTimeout time.Duration `yaml:"startup_timeout" json:"startup_timeout,omitempty"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" json:"shutdown_grace,omitempty"`
}

// Validate rejects configs with path traversal or shell metacharacters in
// stdio fields, and malformed URLs for network transports.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp: server name is required")
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcp: server %q: command is required for stdio transport", c.Name)
		}
		if strings.Contains(filepath.Clean(c.Command), "..") {
			return fmt.Errorf("mcp: server %q: command contains path traversal", c.Name)
		}
		for i, arg := range c.Args {
			if containsShellMetachars(arg) {
				return fmt.Errorf("mcp: server %q: arg[%d] contains suspicious shell metacharacters: %q", c.Name, i, arg)
			}
		}
	case TransportSSE, TransportWebsocket:
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") && !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
			return fmt.Errorf("mcp: server %q: url must be http(s) or ws(s)", c.Name)
		}
	default:
		return fmt.Errorf("mcp: server %q: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

func containsShellMetachars(s string) bool {
	return strings.ContainsAny(s, ";&|`$(){}<>\n")
}

func (c *ServerConfig) startupTimeout() time.Duration {
	if c.StartupTimeout > 0 {
		return c.StartupTimeout
	}
	return 10 * time.Second
}

func (c *ServerConfig) shutdownGrace() time.Duration {
	if c.ShutdownGrace > 0 {
		return c.ShutdownGrace
	}
	return 5 * time.Second
}

// RemoteTool is a tool discovered from a server's tools/list response.
type RemoteTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSON-RPC 2.0 envelope types shared by every transport.

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type listToolsResult struct {
	Tools []RemoteTool `json:"tools"`
}

type callToolResult struct {
	Content []callToolContentBlock `json:"content"`
	IsError bool                   `json:"isError"`
}

type callToolContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
