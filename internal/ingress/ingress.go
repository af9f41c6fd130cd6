// Package ingress is the thin seam a transport adapter (HTTP, Slack, CLI)
// sits behind (spec.md §4.9): it owns the load-or-create/append/route/run
// sequence so adapters never touch ThreadStore, Router, or Agent directly.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flores8/tyler/internal/agent"
	"github.com/flores8/tyler/internal/observability"
	"github.com/flores8/tyler/internal/router"
	"github.com/flores8/tyler/internal/threadstore"
	"github.com/flores8/tyler/pkg/models"
)

// ErrAgentNotFound is returned by Submit when the Router selects no agent
// and no DefaultAgent is configured to fall back to.
var ErrAgentNotFound = errors.New("ingress: no agent selected for thread")

// Source identifies the caller submitting a message (spec.md §4.9's
// source{name, thread_id, …}). Name is the adapter's own identity (e.g.
// "slack", "cli"); ThreadID, when set, is the adapter's own identifier for
// an existing conversation, used to find-or-create the thread rather than
// Tyler's internal thread id. Any remaining adapter-specific keys (channel,
// user, …) go in Properties and are matched verbatim on lookup.
type Source struct {
	Name       string
	ThreadID   string
	Properties map[string]any
}

func (s Source) toMap() map[string]any {
	out := map[string]any{"name": s.Name}
	for k, v := range s.Properties {
		out[k] = v
	}
	if s.ThreadID != "" {
		out["thread_id"] = s.ThreadID
	}
	return out
}

func (s Source) lookupProperties() map[string]any {
	out := map[string]any{}
	for k, v := range s.Properties {
		out[k] = v
	}
	if s.ThreadID != "" {
		out["thread_id"] = s.ThreadID
	}
	return out
}

// Result is what Submit returns: the thread in its post-turn state plus
// every message the turn produced (the user message and whatever Agent.Go
// appended), in order.
type Result struct {
	Thread      *models.Thread
	NewMessages []*models.Message
}

// Ingress implements spec.md §4.9's transport-agnostic surface.
type Ingress struct {
	Threads  threadstore.Store
	Registry *router.Registry
	Router   *router.Router

	// DefaultAgent is used when Router.Select resolves no agent (spec.md
	// §4.8 step 3's "nil" case needs somewhere to go in a single-agent
	// deployment with no @mentions and no classifier configured).
	DefaultAgent string
}

// New constructs an Ingress. registry and rtr must not be nil; threads may
// be nil only for deployments that never persist (not meaningful outside
// tests).
func New(threads threadstore.Store, registry *router.Registry, rtr *router.Router) *Ingress {
	return &Ingress{Threads: threads, Registry: registry, Router: rtr}
}

// Submit loads-or-creates the thread addressed by source, appends the user
// message, routes it to an agent, runs that agent's turn, and returns the
// thread plus every message produced this call (spec.md §4.9).
func (i *Ingress) Submit(ctx context.Context, messageText string, source Source, attachments []models.Attachment) (*Result, error) {
	thread, err := i.loadOrCreateThread(ctx, source)
	if err != nil {
		return nil, err
	}

	userMsg := models.NewMessage(models.RoleUser, models.NewTextContent(messageText), time.Time{})
	userMsg.Attachments = attachments
	userMsg.Source = source.toMap()
	thread.AddMessage(userMsg)

	agentName, ok := i.Router.Select(ctx, thread)
	if !ok {
		agentName = i.DefaultAgent
	}
	if agentName == "" {
		return nil, ErrAgentNotFound
	}
	a, ok := i.Registry.Get(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, agentName)
	}

	ctx = observability.WithThreadID(ctx, thread.ID)
	ctx = observability.WithAgent(ctx, agentName)
	slog.InfoContext(ctx, "routed message to agent")

	_, produced, err := a.Go(ctx, thread)
	if err != nil {
		slog.ErrorContext(ctx, "agent turn failed", "error", err)
		return nil, err
	}

	return &Result{Thread: thread, NewMessages: append([]*models.Message{userMsg}, produced...)}, nil
}

// Stream is Submit's streaming counterpart: it loads-or-creates the thread
// and appends the user message exactly as Submit does, then hands the
// thread to the selected agent's GoStream and returns its event channel
// unmodified for the adapter to forward (spec.md §4.9).
func (i *Ingress) Stream(ctx context.Context, messageText string, source Source, attachments []models.Attachment) (*models.Thread, <-chan agent.StreamEvent, error) {
	thread, err := i.loadOrCreateThread(ctx, source)
	if err != nil {
		return nil, nil, err
	}

	userMsg := models.NewMessage(models.RoleUser, models.NewTextContent(messageText), time.Time{})
	userMsg.Attachments = attachments
	userMsg.Source = source.toMap()
	thread.AddMessage(userMsg)

	agentName, ok := i.Router.Select(ctx, thread)
	if !ok {
		agentName = i.DefaultAgent
	}
	if agentName == "" {
		return nil, nil, ErrAgentNotFound
	}
	a, ok := i.Registry.Get(agentName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrAgentNotFound, agentName)
	}

	ctx = observability.WithThreadID(ctx, thread.ID)
	ctx = observability.WithAgent(ctx, agentName)
	slog.InfoContext(ctx, "routed message to agent for streaming")

	events, err := a.GoStream(ctx, thread)
	if err != nil {
		slog.ErrorContext(ctx, "agent stream failed to start", "error", err)
		return nil, nil, err
	}
	return thread, events, nil
}

// GetThread is a pass-through to ThreadStore.Get (spec.md §4.9).
func (i *Ingress) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	return i.Threads.Get(ctx, id)
}

// ListRecent is a pass-through to ThreadStore.ListRecent (spec.md §4.9).
func (i *Ingress) ListRecent(ctx context.Context, limit int) ([]*models.Thread, error) {
	return i.Threads.ListRecent(ctx, limit)
}

// DeleteThread is a pass-through to ThreadStore.Delete (spec.md §4.9).
func (i *Ingress) DeleteThread(ctx context.Context, id string) (bool, error) {
	return i.Threads.Delete(ctx, id)
}

// loadOrCreateThread resolves source to an existing thread via
// FindBySource(source.Name, {thread_id, ...properties}), falling back to a
// fresh thread stamped with source when no match exists.
func (i *Ingress) loadOrCreateThread(ctx context.Context, source Source) (*models.Thread, error) {
	if source.ThreadID != "" || len(source.Properties) > 0 {
		found, err := i.Threads.FindBySource(ctx, source.Name, source.lookupProperties())
		if err != nil {
			return nil, fmt.Errorf("ingress: find thread by source: %w", err)
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}

	thread := models.NewThread()
	thread.Source = source.toMap()
	return thread, nil
}
