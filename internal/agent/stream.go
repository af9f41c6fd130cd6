package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flores8/tyler/pkg/models"
)

// toolCallAccumulator assembles one streamed tool call from its
// index-keyed delta fragments (spec.md §4.7.2): arguments are built by
// lexical concatenation of each chunk's fragment, in arrival order.
type toolCallAccumulator struct {
	id        string
	name      string
	arguments strings.Builder
}

// GoStream runs one user turn in streaming mode (spec.md §4.7.2), emitting
// ContentChunk events as assistant text arrives, an AssistantMessage event
// once a streamed response is fully assembled, a ToolMessage event per
// executed tool call, and a final Complete or Error event. The returned
// channel is closed when the turn ends.
func (a *Agent) GoStream(ctx context.Context, thread *models.Thread) (<-chan StreamEvent, error) {
	if thread == nil {
		return nil, ErrNilThread
	}
	events := make(chan StreamEvent)
	go a.runStream(ctx, thread, events)
	return events, nil
}

func (a *Agent) runStream(ctx context.Context, thread *models.Thread, events chan<- StreamEvent) {
	defer close(events)

	lock := a.threadLock(thread.ID)
	lock.Lock()
	defer lock.Unlock()

	firstIteration := true
	recursion := 0

	for {
		if firstIteration {
			prompt := renderSystemPrompt(a.cfg, time.Now())
			thread.EnsureSystemPrompt(prompt)
			if last := thread.LastMessageByRole(models.RoleUser); last != nil {
				_ = a.pipeline.Process(ctx, last)
			}
			if err := a.persist(ctx, thread); err != nil {
				events <- StreamEvent{Type: EventError, Err: err.Error()}
				return
			}
			firstIteration = false
		}

		if recursion >= a.maxRecursion() {
			halt := models.NewMessage(models.RoleAssistant, models.NewTextContent(maxRecursionMessage), time.Time{})
			thread.AddMessage(halt)
			if err := a.persist(ctx, thread); err != nil {
				events <- StreamEvent{Type: EventError, Err: err.Error()}
				return
			}
			events <- StreamEvent{Type: EventAssistantMessage, Message: halt}
			events <- StreamEvent{Type: EventComplete}
			return
		}

		assistant, toolCalls, err := a.streamOneCompletion(ctx, thread, events)
		if err != nil {
			events <- StreamEvent{Type: EventError, Err: err.Error()}
			return
		}
		thread.AddMessage(assistant)
		events <- StreamEvent{Type: EventAssistantMessage, Message: assistant}

		if len(toolCalls) == 0 {
			if err := a.persist(ctx, thread); err != nil {
				events <- StreamEvent{Type: EventError, Err: err.Error()}
				return
			}
			events <- StreamEvent{Type: EventComplete}
			return
		}

		toolMsgs, interrupted := a.runToolCalls(ctx, toolCalls)
		for _, tm := range toolMsgs {
			thread.AddMessage(tm)
			events <- StreamEvent{Type: EventToolMessage, Message: tm}
		}

		if err := a.persist(ctx, thread); err != nil {
			events <- StreamEvent{Type: EventError, Err: err.Error()}
			return
		}
		if interrupted {
			events <- StreamEvent{Type: EventComplete}
			return
		}
		recursion++
	}
}

// streamOneCompletion drains one provider.Stream call, forwarding content
// fragments as ContentChunk events and assembling the final assistant
// message plus any tool calls it requested.
func (a *Agent) streamOneCompletion(ctx context.Context, thread *models.Thread, events chan<- StreamEvent) (*models.Message, []models.ToolCall, error) {
	started := time.Now()
	chunks, err := a.provider.Stream(ctx, a.buildRequest(thread))
	if err != nil {
		return nil, nil, fmt.Errorf("agent: stream completion: %w", err)
	}

	var text strings.Builder
	accumulators := map[int]*toolCallAccumulator{}
	var order []int
	var model string
	var usage *models.Usage

	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, nil, fmt.Errorf("agent: stream completion: %w", chunk.Err)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.Delta.Content != "" {
			text.WriteString(chunk.Delta.Content)
			events <- StreamEvent{Type: EventContentChunk, Content: chunk.Delta.Content}
		}
		for _, d := range chunk.Delta.ToolCallDeltas {
			acc, exists := accumulators[d.Index]
			if !exists {
				if d.ID == "" {
					// A tool-call delta with no id on its first appearance
					// cannot be correlated with a call; ignore it.
					continue
				}
				acc = &toolCallAccumulator{}
				accumulators[d.Index] = acc
				order = append(order, d.Index)
			}
			if d.ID != "" {
				acc.id = d.ID
			}
			if d.Name != "" {
				acc.name = d.Name
			}
			if d.Arguments != "" {
				acc.arguments.WriteString(d.Arguments)
			}
		}
	}
	ended := time.Now()

	sort.Ints(order)
	toolCalls := make([]models.ToolCall, 0, len(order))
	for _, idx := range order {
		acc := accumulators[idx]
		args := acc.arguments.String()
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, models.ToolCall{
			ID:   acc.id,
			Type: "function",
			Function: models.ToolCallFunction{
				Name:      acc.name,
				Arguments: args,
			},
		})
	}

	assistant := models.NewMessage(models.RoleAssistant, models.NewTextContent(text.String()), time.Time{})
	assistant.ToolCalls = toolCalls
	metrics := models.MessageMetrics{Model: model, Timing: models.NewTiming(started, ended)}
	if usage != nil {
		metrics.Usage = *usage
	}
	assistant.Metrics = metrics
	return assistant, toolCalls, nil
}
