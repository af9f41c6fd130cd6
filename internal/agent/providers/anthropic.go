package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/flores8/tyler/internal/agent"
	"github.com/flores8/tyler/pkg/models"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicConfig holds configuration for creating an AnthropicProvider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API authentication key (required).
	APIKey string

	// BaseURL overrides the default Anthropic API base URL.
	BaseURL string

	// MaxRetries is stored on the provider's BaseProvider. Default: 3.
	// AnthropicProvider itself makes a single request per call and does
	// not retry transient failures.
	MaxRetries int

	// RetryDelay is stored on the provider's BaseProvider alongside
	// MaxRetries. Default: 1s.
	RetryDelay time.Duration

	// DefaultModel is used when a request doesn't specify one.
	DefaultModel string

	// MaxTokens caps a single completion. Default: 4096.
	MaxTokens int
}

// AnthropicProvider implements agent.LLMProvider against Anthropic's
// Messages API.
type AnthropicProvider struct {
	client       anthropic.Client
	base         BaseProvider
	defaultModel string
	maxTokens    int
}

// NewAnthropicProvider creates a new Anthropic provider instance, applying
// defaults for optional fields.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultAnthropicMaxTokens
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		base:         NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		defaultModel: config.DefaultModel,
		maxTokens:    config.MaxTokens,
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) getModel(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Complete drains Stream to assemble a single response, matching the
// batch half of agent.LLMProvider. Anthropic's SDK is stream-native, so
// Complete is implemented in terms of Stream rather than a separate
// non-streaming request.
func (p *AnthropicProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	pending := map[int]*pendingToolCall{}
	var order []int
	var usage models.Usage
	model := p.getModel(req.Model)

	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.Delta.Content != "" {
			text.WriteString(chunk.Delta.Content)
		}
		for _, d := range chunk.Delta.ToolCallDeltas {
			tc, ok := pending[d.Index]
			if !ok {
				tc = &pendingToolCall{}
				pending[d.Index] = tc
				order = append(order, d.Index)
			}
			if d.ID != "" {
				tc.id = d.ID
			}
			if d.Name != "" {
				tc.name = d.Name
			}
			if d.Arguments != "" {
				tc.args.WriteString(d.Arguments)
			}
		}
	}

	sort.Ints(order)
	var calls []models.ToolCall
	for _, idx := range order {
		tc := pending[idx]
		args := tc.args.String()
		if args == "" {
			args = "{}"
		}
		calls = append(calls, models.ToolCall{
			ID:   tc.id,
			Type: "function",
			Function: models.ToolCallFunction{
				Name:      tc.name,
				Arguments: args,
			},
		})
	}

	return &agent.CompletionResponse{Model: model, Content: text.String(), ToolCalls: calls, Usage: usage}, nil
}

// Stream opens a streaming Messages request and forwards deltas as
// agent.StreamChunk values. Anthropic's content blocks arrive one at a
// time rather than interleaved, so each tool_use block is assigned the
// next free index as it starts rather than read off the wire.
func (p *AnthropicProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	model := p.getModel(req.Model)

	messages, system, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = tools
	}

	// NewStreaming returns its stream object synchronously; real transport
	// failures only surface once the stream is iterated, so there is
	// nothing to retry before the first event is read. Whatever error
	// comes back from iterating is still classified and wrapped below.
	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan agent.StreamChunk)
	go p.processStream(stream, out, model)
	return out, nil
}

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- agent.StreamChunk, model string) {
	defer close(out)

	var inputTokens, outputTokens int
	currentToolIndex := -1
	nextToolIndex := 0

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			if messageStart.Message.Usage.InputTokens > 0 {
				inputTokens = int(messageStart.Message.Usage.InputTokens)
			}

		case "content_block_start":
			contentBlockStart := event.AsContentBlockStart()
			if contentBlockStart.ContentBlock.Type == "tool_use" {
				toolUse := contentBlockStart.ContentBlock.AsToolUse()
				currentToolIndex = nextToolIndex
				nextToolIndex++
				out <- agent.StreamChunk{
					Model: model,
					Delta: agent.ChunkDelta{ToolCallDeltas: []agent.ToolCallDelta{
						{Index: currentToolIndex, ID: toolUse.ID, Name: toolUse.Name},
					}},
				}
			}

		case "content_block_delta":
			contentBlockDelta := event.AsContentBlockDelta()
			delta := contentBlockDelta.Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- agent.StreamChunk{Model: model, Delta: agent.ChunkDelta{Content: delta.Text}}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" && currentToolIndex >= 0 {
					out <- agent.StreamChunk{
						Model: model,
						Delta: agent.ChunkDelta{ToolCallDeltas: []agent.ToolCallDelta{
							{Index: currentToolIndex, Arguments: delta.PartialJSON},
						}},
					}
				}
			}

		case "content_block_stop":
			currentToolIndex = -1

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				outputTokens = int(messageDelta.Usage.OutputTokens)
			}

		case "message_stop":
			out <- agent.StreamChunk{
				Model: model,
				Usage: &models.Usage{
					PromptTokens:     inputTokens,
					CompletionTokens: outputTokens,
					TotalTokens:      inputTokens + outputTokens,
				},
			}
			return

		case "error":
			out <- agent.StreamChunk{Err: wrapError(errors.New("anthropic stream error"), "anthropic", model)}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- agent.StreamChunk{Err: wrapError(err, "anthropic", model)}
	}
}

// convertAnthropicMessages converts the wire-shaped chat completion
// messages into Anthropic's MessageParam shape, pulling the system
// message (if any) out into its own return value since Anthropic carries
// it as a top-level request field rather than a message in the list.
func convertAnthropicMessages(messages []map[string]any) ([]anthropic.MessageParam, string, error) {
	var result []anthropic.MessageParam
	var system string

	for _, msg := range messages {
		role, _ := msg["role"].(string)
		if role == "system" {
			if s, ok := msg["content"].(string); ok {
				system = s
			}
			continue
		}

		blocks, err := convertAnthropicContentBlocks(msg)
		if err != nil {
			return nil, "", err
		}
		if len(blocks) == 0 {
			continue
		}

		if role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}

	return result, system, nil
}

func convertAnthropicContentBlocks(msg map[string]any) ([]anthropic.ContentBlockParamUnion, error) {
	role, _ := msg["role"].(string)

	if role == "tool" {
		toolCallID, _ := msg["tool_call_id"].(string)
		content, _ := msg["content"].(string)
		return []anthropic.ContentBlockParamUnion{anthropic.NewToolResultBlock(toolCallID, content, false)}, nil
	}

	var blocks []anthropic.ContentBlockParamUnion
	if text, ok := msg["content"].(string); ok && text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}

	if calls, ok := msg["tool_calls"].([]models.ToolCall); ok {
		for _, tc := range calls {
			var input map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					return nil, fmt.Errorf("tool call %s: invalid arguments: %w", tc.Function.Name, err)
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		}
	}

	return blocks, nil
}

// convertAnthropicTools converts tool definitions into Anthropic's tool
// schema shape.
func convertAnthropicTools(tools []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var raw map[string]any
		params := tool.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		if err := json.Unmarshal(params, &raw); err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", tool.Name, err)
		}

		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := raw["properties"]; ok {
			schema.Properties = props
		}

		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		})
	}
	return result, nil
}
