// Package builtin hosts static tool bundles registered via
// toolruntime.Runtime.LoadToolModule, preferring an explicit static
// registry over dynamic module loading for built-ins (spec.md §9).
package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/pkg/models"
)

var calculatorSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"operation": {"type": "string", "enum": ["add", "subtract", "multiply", "divide"]},
		"a": {"type": "number"},
		"b": {"type": "number"}
	},
	"required": ["operation", "a", "b"]
}`)

type calculatorTool struct{}

func (calculatorTool) Name() string            { return "calculator" }
func (calculatorTool) Description() string     { return "Performs a single arithmetic operation on two numbers." }
func (calculatorTool) Schema() json.RawMessage { return calculatorSchema }

type calculatorArgs struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

func (calculatorTool) Execute(_ context.Context, args json.RawMessage) (*toolruntime.ToolResult, error) {
	var parsed calculatorArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	var result float64
	switch parsed.Operation {
	case "add":
		result = parsed.A + parsed.B
	case "subtract":
		result = parsed.A - parsed.B
	case "multiply":
		result = parsed.A * parsed.B
	case "divide":
		if parsed.B == 0 {
			return &toolruntime.ToolResult{Content: "Error executing tool: division by zero", IsError: true}, nil
		}
		result = parsed.A / parsed.B
	default:
		return &toolruntime.ToolResult{Content: fmt.Sprintf("Error executing tool: unknown operation %q", parsed.Operation), IsError: true}, nil
	}

	payload, _ := json.Marshal(map[string]any{"result": result})
	return &toolruntime.ToolResult{Content: string(payload)}, nil
}

// CalculatorTools returns the calculator bundle (spec.md §4.3).
func CalculatorTools() []toolruntime.BundleEntry {
	return []toolruntime.BundleEntry{
		{
			Definition: models.ToolDefinition{
				Name:        "calculator",
				Description: calculatorTool{}.Description(),
				Parameters:  calculatorSchema,
			},
			Implementation: calculatorTool{},
		},
	}
}
