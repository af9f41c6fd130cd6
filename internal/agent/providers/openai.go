package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/flores8/tyler/internal/agent"
	"github.com/flores8/tyler/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements agent.LLMProvider against OpenAI's chat
// completions API.
type OpenAIProvider struct {
	client *openai.Client
	base   BaseProvider
}

// NewOpenAIProvider creates a provider bound to the given API key. A
// provider constructed with an empty key can be registered but every call
// fails immediately, matching how an unconfigured provider behaves for
// any other backend.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	p := &OpenAIProvider{base: NewBaseProvider("openai", 3, time.Second)}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete drains Stream to assemble a single response, matching the
// batch half of agent.LLMProvider.
func (p *OpenAIProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	pending := map[int]*pendingToolCall{}
	var order []int
	var usage models.Usage
	model := req.Model

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

// Stream opens a streaming chat completion and forwards deltas as
// agent.StreamChunk values.
func (p *OpenAIProvider) Stream(ctx context.Context, req agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: convertOpenAIMessages(req.Messages),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	err := p.base.Retry(ctx, p.isRetryableError, func() error {
		s, err := p.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "openai", req.Model)
	}

	out := make(chan agent.StreamChunk)
	go p.processStream(stream, out, req.Model)
	return out, nil
}

func (p *OpenAIProvider) processStream(stream *openai.ChatCompletionStream, out chan<- agent.StreamChunk, model string) {
	defer close(out)
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			out <- agent.StreamChunk{Err: wrapError(err, "openai", model)}
			return
		}

		if resp.Usage != nil {
			out <- agent.StreamChunk{
				Model: model,
				Usage: &models.Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			out <- agent.StreamChunk{Model: model, Delta: agent.ChunkDelta{Content: delta.Content}}
		}

		if len(delta.ToolCalls) > 0 {
			deltas := make([]agent.ToolCallDelta, 0, len(delta.ToolCalls))
			for _, tc := range delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				deltas = append(deltas, agent.ToolCallDelta{
					Index:     index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
			out <- agent.StreamChunk{Model: model, Delta: agent.ChunkDelta{ToolCallDeltas: deltas}}
		}
	}
}

// convertOpenAIMessages converts the wire-shaped chat completion messages
// (pkg/models.Message.ToChatCompletionMessage) into go-openai's request
// shape.
func convertOpenAIMessages(messages []map[string]any) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role, _ := msg["role"].(string)
		content, _ := msg["content"].(string)

		switch role {
		case "tool":
			toolCallID, _ := msg["tool_call_id"].(string)
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: toolCallID,
			})
		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
			if calls, ok := msg["tool_calls"].([]models.ToolCall); ok && len(calls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(calls))
				for i, tc := range calls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					}
				}
			}
			result = append(result, oaiMsg)
		case "system":
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content})
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content})
		}
	}
	return result
}

// convertOpenAITools converts tool definitions into go-openai's function
// tool shape, falling back to an empty object schema on malformed JSON.
func convertOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		var schema map[string]any
		if len(tool.Parameters) > 0 {
			if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
				schema = map[string]any{"type": "object", "properties": map[string]any{}}
			}
		} else {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		})
	}
	return result
}

func (p *OpenAIProvider) isRetryableError(err error) bool {
	return ClassifyError(err).IsRetryable()
}
