package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/pkg/models"
)

// ToolProxy implements toolruntime.Tool by forwarding Execute to a remote
// MCP server's tools/call method, grounded on the teacher's ToolBridge
// proxy shape.
type ToolProxy struct {
	serverName   string
	originalName string
	description  string
	schema       json.RawMessage
	transport    Transport
}

func (p *ToolProxy) Name() string {
	return qualifiedName(p.serverName, p.originalName)
}

func (p *ToolProxy) Description() string {
	if p.description == "" {
		return fmt.Sprintf("Proxies %q on mcp server %q.", p.originalName, p.serverName)
	}
	return p.description
}

func (p *ToolProxy) Schema() json.RawMessage {
	if len(p.schema) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return p.schema
}

func (p *ToolProxy) definition(qualified string) models.ToolDefinition {
	return models.ToolDefinition{
		Name:        qualified,
		Description: p.Description(),
		Parameters:  p.Schema(),
	}
}

func (p *ToolProxy) Execute(ctx context.Context, args json.RawMessage) (*toolruntime.ToolResult, error) {
	var arguments any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
	} else {
		arguments = map[string]any{}
	}

	raw, err := p.transport.Call(ctx, "tools/call", map[string]any{
		"name":      p.originalName,
		"arguments": arguments,
	})
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}

	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: malformed response from mcp server: " + err.Error(), IsError: true}, nil
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return &toolruntime.ToolResult{Content: strings.Join(parts, "\n"), IsError: result.IsError}, nil
}
