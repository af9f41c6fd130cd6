// Package toolruntime holds a name→entry map of callable tools and executes
// tool calls emitted by a model (spec.md §4.3), grounded on the teacher's
// ToolRegistry/ToolExecutor pair.
package toolruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/flores8/tyler/pkg/models"
)

// MaxToolNameLength and MaxToolParamsSize bound resource exhaustion from a
// misbehaving model, mirrored from the teacher's ToolRegistry limits.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// Tool is a callable tool implementation.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (*ToolResult, error)
}

// AsyncTool is a marker interface a Tool may additionally implement to
// declare it should run without blocking the turn's goroutine the way a
// long-lived job would (spec.md §4.3's "detection is automatic").
type AsyncTool interface {
	IsAsync() bool
}

// ArtifactProducer lets a Tool return files alongside its textual result;
// the Agent Loop converts Artifacts into Attachments on the tool message
// (spec.md §4.3's tuple-result convention).
type ArtifactProducer interface {
	ExecuteWithArtifacts(ctx context.Context, args json.RawMessage) (*ToolResult, []Artifact, error)
}

// Artifact is a file produced by a tool call.
type Artifact struct {
	Filename string
	Content  []byte
	MimeType string
}

// ToolResult is the outcome of a single tool execution.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
}

// ToolEntry is a registered tool plus its definition and attributes.
type ToolEntry struct {
	Tool       Tool
	Definition models.ToolDefinition
	Attributes map[string]any
}

// BundleEntry is one tool within a built-in bundle (spec.md §4.3).
type BundleEntry struct {
	Definition     models.ToolDefinition
	Implementation Tool
	Attributes     map[string]any
}

// Runtime holds the registered tool set and executes tool calls.
type Runtime struct {
	mu    sync.RWMutex
	tools map[string]*ToolEntry

	// StrictSchema validates tool-call arguments against each tool's JSON
	// Schema before execution when true (spec.md §4.3 [NEW]).
	StrictSchema bool

	// Concurrency bounds how many sync tool calls run in parallel per
	// ExecuteToolCalls batch (spec.md §5).
	Concurrency int
}

// New creates an empty Runtime with sensible defaults.
func New() *Runtime {
	return &Runtime{tools: make(map[string]*ToolEntry), Concurrency: 4}
}

// RegisterTool stores entry; if a prior entry exists under the same name,
// only the implementation (and the IsAsync flag derived from it) is
// overwritten (spec.md §4.3). def.IsAsync is
// overridden to reflect whether impl actually implements AsyncTool, so
// Definition.IsAsync always describes the registered implementation
// rather than whatever a caller guessed when building def.
func (r *Runtime) RegisterTool(name string, impl Tool, def models.ToolDefinition) {
	if async, ok := impl.(AsyncTool); ok {
		def.IsAsync = async.IsAsync()
	} else {
		def.IsAsync = false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tools[name]; ok {
		existing.Tool = impl
		existing.Definition.IsAsync = def.IsAsync
		return
	}
	r.tools[name] = &ToolEntry{Tool: impl, Definition: def}
}

// RegisterToolAttributes attaches a metadata map to an already-registered
// tool, used by the Agent Loop to recognize reserved behaviors such as
// `type:"interrupt"`.
func (r *Runtime) RegisterToolAttributes(name string, attrs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.tools[name]; ok {
		entry.Attributes = attrs
	}
}

// LoadToolModule registers every tool in bundle under its own definition
// name (spec.md §4.3's "load_tool_module").
func (r *Runtime) LoadToolModule(bundle []BundleEntry) {
	for _, entry := range bundle {
		r.RegisterTool(entry.Definition.Name, entry.Implementation, entry.Definition)
		if entry.Attributes != nil {
			r.RegisterToolAttributes(entry.Definition.Name, entry.Attributes)
		}
	}
}

// Get returns the entry registered under name.
func (r *Runtime) Get(name string) (*ToolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	return entry, ok
}

// GetToolAttributes returns the attributes map registered for name, or nil.
func (r *Runtime) GetToolAttributes(name string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	if !ok {
		return nil
	}
	return entry.Attributes
}

// GetToolsForChatCompletion returns every registered tool's definition in
// the shape passed to the LLM provider.
func (r *Runtime) GetToolsForChatCompletion() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(r.tools))
	for _, entry := range r.tools {
		defs = append(defs, entry.Definition)
	}
	return defs
}

// ExecuteToolCall decodes call.Function.Arguments as JSON, runs the
// registered tool, and always produces a result — errors are captured into
// Content rather than propagated (spec.md §4.3).
func (r *Runtime) ExecuteToolCall(ctx context.Context, call models.ToolCall) (res *ToolResult, artifacts []Artifact) {
	defer func() {
		if rec := recover(); rec != nil {
			res = &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: fmt.Sprintf("Error executing tool: %v", rec), IsError: true}
		}
	}()

	if len(call.Function.Name) > MaxToolNameLength {
		return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: tool name too long", IsError: true}, nil
	}
	args := json.RawMessage(call.Function.Arguments)
	if len(args) > MaxToolParamsSize {
		return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: arguments too large", IsError: true}, nil
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: arguments are not valid JSON", IsError: true}, nil
	}

	entry, ok := r.Get(call.Function.Name)
	if !ok {
		return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: tool not found: " + call.Function.Name, IsError: true}, nil
	}

	if r.StrictSchema {
		if err := validateAgainstSchema(entry.Definition.Parameters, args); err != nil {
			return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: " + err.Error(), IsError: true}, nil
		}
	}

	if producer, ok := entry.Tool.(ArtifactProducer); ok {
		result, files, err := producer.ExecuteWithArtifacts(ctx, args)
		if err != nil {
			return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: " + err.Error(), IsError: true}, nil
		}
		result.ToolCallID = call.ID
		result.Name = call.Function.Name
		return result, files
	}

	result, err := entry.Tool.Execute(ctx, args)
	if err != nil {
		return &ToolResult{ToolCallID: call.ID, Name: call.Function.Name, Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	result.ToolCallID = call.ID
	result.Name = call.Function.Name
	return result, nil
}

// ExecuteToolCalls runs calls concurrently and returns results in call
// order (spec.md §4.3's "awaiting async, offloading sync to a worker").
// Calls whose registered Tool implements AsyncTool with IsAsync() true are
// awaited directly on their own goroutine, outside r.Concurrency's limit,
// the way an async implementation is simply awaited rather than scheduled
// onto a worker. Every other call is treated as sync and offloaded onto a
// bounded pool (r.Concurrency, default 4), grounded on the teacher's
// ExecuteConcurrently semaphore pattern but expressed with
// errgroup.Group.SetLimit. A context cancellation mid-batch still lets
// every in-flight call finish; calls that never started report a
// cancellation error instead of silently vanishing.
func (r *Runtime) ExecuteToolCalls(ctx context.Context, calls []models.ToolCall) ([]*ToolResult, [][]Artifact) {
	results := make([]*ToolResult, len(calls))
	artifacts := make([][]Artifact, len(calls))

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var bounded errgroup.Group
	bounded.SetLimit(concurrency)
	var awaited errgroup.Group

	for i, call := range calls {
		idx, c := i, call
		run := func() error {
			if ctx.Err() != nil {
				results[idx] = &ToolResult{ToolCallID: c.ID, Name: c.Function.Name, Content: "Error executing tool: context canceled", IsError: true}
				return nil
			}
			results[idx], artifacts[idx] = r.ExecuteToolCall(ctx, c)
			return nil
		}
		if r.isAsync(c.Function.Name) {
			awaited.Go(run)
		} else {
			bounded.Go(run)
		}
	}
	_ = bounded.Wait()
	_ = awaited.Wait()
	return results, artifacts
}

// isAsync reports name's registered Definition.IsAsync, set by
// RegisterTool from an AsyncTool type-assertion at registration time
// (spec.md §4.3's automatic sync/async detection). An unregistered name
// is treated as sync; ExecuteToolCall reports the "tool not found" error
// itself.
func (r *Runtime) isAsync(name string) bool {
	entry, ok := r.Get(name)
	if !ok {
		return false
	}
	return entry.Definition.IsAsync
}

func schemaReader(schema json.RawMessage) io.Reader {
	return bytes.NewReader(schema)
}

func validateAgainstSchema(schema json.RawMessage, args json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", schemaReader(schema)); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	compiled, err := compiler.Compile("tool.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
