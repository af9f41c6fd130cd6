package agent

import (
	"context"
	"time"

	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/pkg/models"
)

// Go runs one user turn to completion in batch mode (spec.md §4.7.1):
// ensure the system prompt and run the attachment pipeline on first
// iteration, halt once the recursion budget is spent, otherwise call the
// model, persist the assistant message, and — while it keeps emitting tool
// calls — execute them, persist, and recurse. An interrupt tool halts the
// turn immediately regardless of depth.
//
// threadOrID is either a *models.Thread or a thread id resolved through
// cfg.ThreadStore. Go returns the thread plus every message it produced
// this turn, in order.
func (a *Agent) Go(ctx context.Context, threadOrID any) (*models.Thread, []*models.Message, error) {
	thread, err := a.resolveThread(ctx, threadOrID)
	if err != nil {
		return nil, nil, err
	}

	lock := a.threadLock(thread.ID)
	lock.Lock()
	defer lock.Unlock()

	var produced []*models.Message
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
				return thread, produced, err
			}
			firstIteration = false
		}

		if recursion >= a.maxRecursion() {
			halt := models.NewMessage(models.RoleAssistant, models.NewTextContent(maxRecursionMessage), time.Time{})
			thread.AddMessage(halt)
			produced = append(produced, halt)
			if err := a.persist(ctx, thread); err != nil {
				return thread, produced, err
			}
			return thread, produced, nil
		}

		started := time.Now()
		resp, err := a.provider.Complete(ctx, a.buildRequest(thread))
		ended := time.Now()
		if err != nil {
			return thread, produced, err
		}

		assistant := models.NewMessage(models.RoleAssistant, models.NewTextContent(resp.Content), time.Time{})
		assistant.ToolCalls = resp.ToolCalls
		assistant.Metrics = models.MessageMetrics{
			Model:  resp.Model,
			Timing: models.NewTiming(started, ended),
			Usage:  resp.Usage,
		}
		thread.AddMessage(assistant)
		produced = append(produced, assistant)

		if len(resp.ToolCalls) == 0 {
			if err := a.persist(ctx, thread); err != nil {
				return thread, produced, err
			}
			return thread, produced, nil
		}

		toolMsgs, interrupted := a.runToolCalls(ctx, resp.ToolCalls)
		for _, tm := range toolMsgs {
			thread.AddMessage(tm)
			produced = append(produced, tm)
		}

		if err := a.persist(ctx, thread); err != nil {
			return thread, produced, err
		}
		if interrupted {
			return thread, produced, nil
		}
		recursion++
	}
}

// runToolCalls executes every tool call from one assistant message
// concurrently (bounded by cfg.Tools.Concurrency) and turns each result
// into a tool Message in call order, reporting whether any tool executed
// was an interrupt tool.
func (a *Agent) runToolCalls(ctx context.Context, calls []models.ToolCall) ([]*models.Message, bool) {
	started := time.Now()
	if a.cfg.Tools == nil {
		msgs := make([]*models.Message, len(calls))
		for i, call := range calls {
			msgs[i] = toolResultMessage(call, "Error executing tool: no tool runtime configured", nil, nil, started, started)
		}
		return msgs, false
	}

	results, artifacts := a.cfg.Tools.ExecuteToolCalls(ctx, calls)
	ended := time.Now()

	msgs := make([]*models.Message, len(calls))
	interrupted := false
	for i, call := range calls {
		res := results[i]
		attrs := a.cfg.Tools.GetToolAttributes(call.Function.Name)
		msgs[i] = toolResultMessage(call, res.Content, attrs, artifacts[i], started, ended)
		if isInterruptAttrs(attrs) {
			interrupted = true
		}
	}
	return msgs, interrupted
}

func toolResultMessage(call models.ToolCall, content string, attrs map[string]any, artifacts []toolruntime.Artifact, started, ended time.Time) *models.Message {
	msg := models.NewMessage(models.RoleTool, models.NewTextContent(content), time.Time{})
	msg.ToolCallID = call.ID
	msg.Name = call.Function.Name
	msg.Metrics = models.MessageMetrics{Timing: models.NewTiming(started, ended)}
	if attrs != nil {
		msg.Attributes = map[string]any{models.AttrToolAttributes: attrs}
	}
	for _, art := range artifacts {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Filename: art.Filename,
			MimeType: art.MimeType,
			Content:  art.Content,
		})
	}
	return msg
}
