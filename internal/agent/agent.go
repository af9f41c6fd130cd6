package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/flores8/tyler/internal/attachment"
	"github.com/flores8/tyler/pkg/models"
)

// maxRecursionMessage is the fixed halt text appended when a turn exceeds
// its configured recursion budget (spec.md §4.7.1 step 3).
const maxRecursionMessage = "Maximum tool recursion depth reached. Stopping further tool calls."

// Agent wraps one named persona's LLMProvider, tool runtime, and thread
// persistence behind the two turn-taking entry points, Go and GoStream
// (spec.md §4.7). It serializes turns per thread id, grounded on the
// teacher's per-session lock-map pattern.
type Agent struct {
	cfg      Config
	provider LLMProvider
	pipeline *attachment.Pipeline

	mu          sync.Mutex
	threadLocks map[string]*sync.Mutex
}

// New constructs an Agent. pipeline may be nil, in which case a default
// attachment.Pipeline (no resolver, default file processor) is used.
func New(cfg Config, provider LLMProvider, pipeline *attachment.Pipeline) (*Agent, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	if pipeline == nil {
		pipeline = attachment.New(nil, nil)
	}
	return &Agent{
		cfg:         cfg,
		provider:    provider,
		pipeline:    pipeline,
		threadLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Name returns the persona name this agent was configured with, used by
// Router/Registry for @mention matching and classifier prompts.
func (a *Agent) Name() string {
	if a.cfg.Name != "" {
		return a.cfg.Name
	}
	return "Tyler"
}

// Purpose returns the persona's configured purpose, used by the
// classifier fallback's fixed prompt (spec.md §4.8).
func (a *Agent) Purpose() string {
	return a.cfg.Purpose
}

func (a *Agent) maxRecursion() int {
	if a.cfg.MaxToolRecursion > 0 {
		return a.cfg.MaxToolRecursion
	}
	return DefaultMaxToolRecursion
}

// threadLock returns the mutex serializing turns for threadID, creating one
// on first use.
func (a *Agent) threadLock(threadID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.threadLocks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		a.threadLocks[threadID] = lock
	}
	return lock
}

// resolveThread accepts either a *models.Thread or a thread id string
// (spec.md §4.7's duck-typed "thread_or_id" argument).
func (a *Agent) resolveThread(ctx context.Context, threadOrID any) (*models.Thread, error) {
	switch v := threadOrID.(type) {
	case *models.Thread:
		if v == nil {
			return nil, ErrNilThread
		}
		return v, nil
	case string:
		if a.cfg.ThreadStore == nil {
			return nil, ErrNoThreadStore
		}
		thread, err := a.cfg.ThreadStore.Get(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("agent: load thread %q: %w", v, err)
		}
		if thread == nil {
			return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, v)
		}
		return thread, nil
	default:
		return nil, fmt.Errorf("agent: unsupported thread argument type %T", threadOrID)
	}
}

func (a *Agent) persist(ctx context.Context, thread *models.Thread) error {
	if a.cfg.ThreadStore == nil {
		return nil
	}
	if err := a.cfg.ThreadStore.Save(ctx, thread); err != nil {
		return fmt.Errorf("agent: persist thread %q: %w", thread.ID, err)
	}
	return nil
}

func (a *Agent) buildRequest(thread *models.Thread) CompletionRequest {
	req := CompletionRequest{
		Model:       a.cfg.ModelName,
		Messages:    thread.GetMessagesForChatCompletion(),
		Temperature: a.cfg.Temperature,
	}
	if a.cfg.Tools != nil {
		if tools := a.cfg.Tools.GetToolsForChatCompletion(); len(tools) > 0 {
			req.Tools = tools
		}
	}
	return req
}

func isInterruptAttrs(attrs map[string]any) bool {
	if attrs == nil {
		return false
	}
	v, _ := attrs["type"].(string)
	return v == "interrupt"
}
