package models

import "time"

// Usage carries token accounting for a single completion.
type Usage struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the componentwise sum of two Usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Timing records wall-clock start/end for a completion or tool call.
type Timing struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	LatencyMs int64     `json:"latency_ms"`
}

// NewTiming derives LatencyMs from the started/ended timestamps.
func NewTiming(started, ended time.Time) Timing {
	return Timing{
		StartedAt: started,
		EndedAt:   ended,
		LatencyMs: ended.Sub(started).Milliseconds(),
	}
}

// WeaveCall records opaque provider tracing identifiers, per spec.md's
// Open Question resolution: these fields are recorded when available and
// never interpreted.
type WeaveCall struct {
	ID        string `json:"id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// MessageMetrics is the per-message metrics block described in spec.md §3.
type MessageMetrics struct {
	Model     string    `json:"model,omitempty"`
	Timing    Timing    `json:"timing"`
	Usage     Usage     `json:"usage"`
	WeaveCall WeaveCall `json:"weave_call,omitempty"`
}

// ModelUsage aggregates calls and tokens for a single model name.
type ModelUsage struct {
	Calls            int `json:"calls"`
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ThreadMetrics is the aggregated metrics block carried on a Thread.
type ThreadMetrics struct {
	CompletionTokens int                   `json:"completion_tokens"`
	PromptTokens     int                   `json:"prompt_tokens"`
	TotalTokens      int                   `json:"total_tokens"`
	ModelUsage       map[string]ModelUsage `json:"model_usage,omitempty"`
}

// Add folds a message's metrics into the running thread total. Messages
// with a blank Model (e.g. user messages) only contribute to the overall
// counters, never to ModelUsage, matching the "ignoring missing fields"
// rule in spec.md §4.6.
func (m *ThreadMetrics) Add(mm MessageMetrics) {
	m.CompletionTokens += mm.Usage.CompletionTokens
	m.PromptTokens += mm.Usage.PromptTokens
	m.TotalTokens += mm.Usage.TotalTokens

	if mm.Model == "" {
		return
	}
	if m.ModelUsage == nil {
		m.ModelUsage = make(map[string]ModelUsage)
	}
	entry := m.ModelUsage[mm.Model]
	entry.Calls++
	entry.CompletionTokens += mm.Usage.CompletionTokens
	entry.PromptTokens += mm.Usage.PromptTokens
	entry.TotalTokens += mm.Usage.TotalTokens
	m.ModelUsage[mm.Model] = entry
}
