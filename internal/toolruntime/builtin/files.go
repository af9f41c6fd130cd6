package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/pkg/models"
)

var readFileSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"path": {"type": "string", "description": "path relative to the sandbox root"}},
	"required": ["path"]
}`)

var writeFileSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "path relative to the sandbox root"},
		"content": {"type": "string"}
	},
	"required": ["path", "content"]
}`)

// FilesTools returns a sandboxed read_file/write_file bundle rooted at
// root; paths escaping root are rejected (spec.md §4.3).
func FilesTools(root string) []toolruntime.BundleEntry {
	return []toolruntime.BundleEntry{
		{
			Definition: models.ToolDefinition{
				Name:        "read_file",
				Description: "Reads a text file from the sandbox root.",
				Parameters:  readFileSchema,
			},
			Implementation: readFileTool{root: root},
		},
		{
			Definition: models.ToolDefinition{
				Name:        "write_file",
				Description: "Writes a text file within the sandbox root.",
				Parameters:  writeFileSchema,
			},
			Implementation: writeFileTool{root: root},
		},
	}
}

type readFileTool struct{ root string }

func (readFileTool) Name() string            { return "read_file" }
func (readFileTool) Description() string     { return "Reads a text file from the sandbox root." }
func (readFileTool) Schema() json.RawMessage { return readFileSchema }

func (t readFileTool) Execute(_ context.Context, args json.RawMessage) (*toolruntime.ToolResult, error) {
	var parsed struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	resolved, err := sandboxedPath(t.root, parsed.Path)
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	return &toolruntime.ToolResult{Content: string(data)}, nil
}

type writeFileTool struct{ root string }

func (writeFileTool) Name() string            { return "write_file" }
func (writeFileTool) Description() string     { return "Writes a text file within the sandbox root." }
func (writeFileTool) Schema() json.RawMessage { return writeFileSchema }

func (t writeFileTool) Execute(_ context.Context, args json.RawMessage) (*toolruntime.ToolResult, error) {
	var parsed struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	resolved, err := sandboxedPath(t.root, parsed.Path)
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	if err := os.WriteFile(resolved, []byte(parsed.Content), 0o644); err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	payload, _ := json.Marshal(map[string]any{"written": len(parsed.Content)})
	return &toolruntime.ToolResult{Content: string(payload)}, nil
}

func sandboxedPath(root, relative string) (string, error) {
	rootClean := filepath.Clean(root)
	clean := filepath.Clean(filepath.Join(rootClean, relative))
	rel, err := filepath.Rel(rootClean, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %q escapes sandbox root", relative)
	}
	return clean, nil
}
