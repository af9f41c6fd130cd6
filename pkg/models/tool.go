package models

import "encoding/json"

// ToolCallFunction is the function payload of a model-emitted tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a single model-emitted request to run a tool, as attached to
// an assistant Message.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolDefinition describes a registered tool's contract: its name,
// human-readable description, and JSON Schema parameter surface, plus the
// attribute bag used for reserved behaviors (e.g. interrupt tools) and
// provenance (e.g. MCP server/original name).
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Attributes  map[string]any  `json:"attributes,omitempty"`
	IsAsync     bool            `json:"-"`
}

// ChatCompletionTool renders the definition in the OpenAI-style
// function-tool wire shape accepted by LLMProvider.Complete/Stream.
func (d ToolDefinition) ChatCompletionTool() map[string]any {
	params := d.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  json.RawMessage(params),
		},
	}
}

// AttributeType reads the reserved "type" attribute, e.g. "interrupt".
func (d ToolDefinition) AttributeType() string {
	if d.Attributes == nil {
		return ""
	}
	v, _ := d.Attributes["type"].(string)
	return v
}

// IsInterrupt reports whether this tool's attributes mark it as an
// interrupt tool (spec.md §3, §4.7.1 step 8d).
func (d ToolDefinition) IsInterrupt() bool {
	return d.AttributeType() == "interrupt"
}
