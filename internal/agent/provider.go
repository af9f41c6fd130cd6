package agent

import (
	"context"

	"github.com/flores8/tyler/pkg/models"
)

// LLMProvider is the seam between the Agent Loop and a concrete language
// model backend, trimmed to the two operations the loop needs: a one-shot
// call for batch mode and a chunked call for streaming mode — grounded on
// the teacher's own LLMProvider interface, renamed Complete/Stream.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// CompletionRequest carries everything a provider needs for one turn's
// model call (spec.md §4.7.1 step 4).
type CompletionRequest struct {
	Model       string
	Messages    []map[string]any
	Temperature float64
	Tools       []models.ToolDefinition
}

// CompletionResponse is a provider's full, non-streamed answer.
type CompletionResponse struct {
	Model     string
	Content   string
	ToolCalls []models.ToolCall
	Usage     models.Usage
}

// StreamChunk is one increment of a streamed completion (spec.md §4.7.2):
// `{choices:[{delta:{content?, tool_calls?, role?}}], usage?}`.
type StreamChunk struct {
	Model string
	Delta ChunkDelta
	Usage *models.Usage
	// Err, when non-nil, ends the stream; the Agent Loop surfaces it as a
	// single ERROR event.
	Err error
}

// ChunkDelta is the incremental content of one StreamChunk.
type ChunkDelta struct {
	Role           string
	Content        string
	ToolCallDeltas []ToolCallDelta
}

// ToolCallDelta is one tool-call fragment within a streamed delta, keyed
// by its position (Index) in the response's tool_calls array. Arguments
// carries only this fragment's text; the accumulator in stream.go
// concatenates fragments across chunks lexically.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}
