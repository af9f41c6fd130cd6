package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flores8/tyler/internal/agent/agenttest"
	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/pkg/models"
)

type divideTool struct{}

func (divideTool) Name() string            { return "divide" }
func (divideTool) Description() string     { return "divides x by y" }
func (divideTool) Schema() json.RawMessage { return nil }
func (divideTool) Execute(_ context.Context, args json.RawMessage) (*toolruntime.ToolResult, error) {
	var in struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	return &toolruntime.ToolResult{Content: "result: 179"}, nil
}

func newUserThread(text string) *models.Thread {
	thread := models.NewThread()
	msg := models.NewMessage(models.RoleUser, models.NewTextContent(text), time.Time{})
	thread.AddMessage(msg)
	return thread
}

func TestAgent_Go_NoToolEcho(t *testing.T) {
	provider := agenttest.NewFakeProvider().AddResponse(&CompletionResponse{
		Model:   "gpt-4o",
		Content: "Hi there",
		Usage:   models.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
	})

	a, err := New(Config{Name: "Tyler", ModelName: "gpt-4o"}, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	thread := newUserThread("Hello")
	resultThread, produced, err := a.Go(context.Background(), thread)
	if err != nil {
		t.Fatalf("Go: %v", err)
	}

	if len(produced) != 1 || produced[0].Content.String() != "Hi there" {
		t.Fatalf("unexpected produced messages: %+v", produced)
	}
	if len(resultThread.Messages) != 3 {
		t.Fatalf("expected system+user+assistant, got %d messages", len(resultThread.Messages))
	}
	if resultThread.Messages[0].Role != models.RoleSystem || resultThread.Messages[0].Sequence != 0 {
		t.Fatalf("expected system message at sequence 0, got %+v", resultThread.Messages[0])
	}
	if resultThread.Metrics.TotalTokens != 8 {
		t.Fatalf("expected thread metrics to accumulate usage, got %+v", resultThread.Metrics)
	}
}

func TestAgent_Go_OneToolRoundTrip(t *testing.T) {
	provider := agenttest.NewFakeProvider().
		AddResponse(&CompletionResponse{
			Model: "gpt-4o",
			ToolCalls: []models.ToolCall{
				{ID: "call-1", Type: "function", Function: models.ToolCallFunction{Name: "divide", Arguments: `{"x":537,"y":3}`}},
			},
		}).
		AddResponse(&CompletionResponse{
			Model:   "gpt-4o",
			Content: "537 divided by 3 is 179.",
		})

	tools := toolruntime.New()
	tools.RegisterTool("divide", divideTool{}, models.ToolDefinition{Name: "divide"})

	a, err := New(Config{Name: "Tyler", ModelName: "gpt-4o", Tools: tools}, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	thread := newUserThread("What is 537 divided by 3?")
	_, produced, err := a.Go(context.Background(), thread)
	if err != nil {
		t.Fatalf("Go: %v", err)
	}

	if len(produced) != 3 {
		t.Fatalf("expected assistant(tool_calls)+tool+assistant, got %d: %+v", len(produced), produced)
	}
	if produced[0].Role != models.RoleAssistant || len(produced[0].ToolCalls) != 1 {
		t.Fatalf("expected first produced message to carry the tool call, got %+v", produced[0])
	}
	if produced[1].Role != models.RoleTool || produced[1].ToolCallID != "call-1" {
		t.Fatalf("expected second produced message to be the tool result, got %+v", produced[1])
	}
	if produced[2].Content.String() != "537 divided by 3 is 179." {
		t.Fatalf("expected final assistant answer, got %+v", produced[2])
	}
}

func TestAgent_Go_MaxRecursionHalts(t *testing.T) {
	provider := agenttest.NewFakeProvider().AddResponse(&CompletionResponse{
		Model: "gpt-4o",
		ToolCalls: []models.ToolCall{
			{ID: "call-1", Type: "function", Function: models.ToolCallFunction{Name: "divide", Arguments: `{"x":1,"y":1}`}},
		},
	})

	tools := toolruntime.New()
	tools.RegisterTool("divide", divideTool{}, models.ToolDefinition{Name: "divide"})

	a, err := New(Config{Name: "Tyler", ModelName: "gpt-4o", Tools: tools, MaxToolRecursion: 1}, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	thread := newUserThread("Keep going forever")
	_, produced, err := a.Go(context.Background(), thread)
	if err != nil {
		t.Fatalf("Go: %v", err)
	}

	last := produced[len(produced)-1]
	if last.Role != models.RoleAssistant || last.Content.String() != maxRecursionMessage {
		t.Fatalf("expected halt message as final produced message, got %+v", last)
	}
}

func TestAgent_Go_InterruptToolHaltsImmediately(t *testing.T) {
	provider := agenttest.NewFakeProvider().AddResponse(&CompletionResponse{
		Model: "gpt-4o",
		ToolCalls: []models.ToolCall{
			{ID: "call-1", Type: "function", Function: models.ToolCallFunction{Name: "harmful_content_review", Arguments: `{}`}},
		},
	})

	tools := toolruntime.New()
	tools.RegisterTool("harmful_content_review", divideTool{}, models.ToolDefinition{Name: "harmful_content_review"})
	tools.RegisterToolAttributes("harmful_content_review", map[string]any{"type": "interrupt"})

	a, err := New(Config{Name: "Tyler", ModelName: "gpt-4o", Tools: tools}, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	thread := newUserThread("Please review this")
	_, produced, err := a.Go(context.Background(), thread)
	if err != nil {
		t.Fatalf("Go: %v", err)
	}

	if len(produced) != 2 {
		t.Fatalf("expected assistant(tool_call)+tool, no further assistant message, got %d: %+v", len(produced), produced)
	}
	if produced[1].Role != models.RoleTool {
		t.Fatalf("expected second produced message to be the tool result, got %+v", produced[1])
	}
}

func TestAgent_Go_AttachmentRoundTrip(t *testing.T) {
	provider := agenttest.NewFakeProvider().AddResponse(&CompletionResponse{
		Model:   "gpt-4o",
		Content: "Got your file.",
	})

	a, err := New(Config{Name: "Tyler", ModelName: "gpt-4o"}, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	thread := models.NewThread()
	msg := models.NewMessage(models.RoleUser, models.NewTextContent("see attached"), time.Time{})
	msg.Attachments = []models.Attachment{{Filename: "notes.md", Content: []byte("# Title\n\nBody text.")}}
	thread.AddMessage(msg)

	_, _, err = a.Go(context.Background(), thread)
	if err != nil {
		t.Fatalf("Go: %v", err)
	}

	att := thread.Messages[1].Attachments[0]
	if att.MimeType != "text/markdown" {
		t.Fatalf("expected sniffed markdown mime type, got %q", att.MimeType)
	}
	if att.ProcessedContent["overview"] != "Title" {
		t.Fatalf("expected attachment pipeline to run before the model call, got %+v", att.ProcessedContent)
	}
}

func TestAgent_Go_ThreadIDWithoutThreadStore(t *testing.T) {
	provider := agenttest.NewFakeProvider()
	a, err := New(Config{Name: "Tyler"}, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := a.Go(context.Background(), "missing-id"); err == nil {
		t.Fatalf("expected an error resolving an unconfigured thread store")
	}
}
