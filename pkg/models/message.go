package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// AttrToolAttributes is the reserved Message.Attributes key that holds a
// tool's declared attributes when a tool result is recorded (spec.md §3).
const AttrToolAttributes = "tool_attributes"

// Message is a single turn in a Thread (spec.md §3).
type Message struct {
	ID         string
	Role       Role
	Sequence   int
	Content    Content
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall

	Attachments []Attachment
	Attributes  map[string]any
	Metrics     MessageMetrics
	Timestamp   time.Time
	Source      map[string]any
}

// NewMessage constructs a Message with a computed id. Timestamp defaults to
// now (UTC) when the zero value is passed.
func NewMessage(role Role, content Content, timestamp time.Time) *Message {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	m := &Message{
		Role:      role,
		Content:   content,
		Timestamp: timestamp.UTC(),
	}
	m.ID = m.ComputeID()
	return m
}

// ComputeID derives the deterministic message id described in spec.md §3 and
// §8: a SHA-256 digest over a canonical, key-sorted JSON encoding of
// {role, sequence, content, timestamp, name?, source?}. Recomputing this on
// a deserialized message always yields the same value.
func (m *Message) ComputeID() string {
	fields := map[string]any{
		"role":      string(m.Role),
		"sequence":  m.Sequence,
		"content":   contentForHash(m.Content),
		"timestamp": m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if m.Name != "" {
		fields["name"] = m.Name
	}
	if m.Source != nil {
		fields["source"] = m.Source
	}
	// Marshaling a Go map sorts keys alphabetically, which gives exactly
	// the canonical key-sorted encoding the id derivation requires.
	encoded, err := json.Marshal(fields)
	if err != nil {
		// Content is always JSON-serializable by construction; this path
		// is unreachable in practice.
		encoded = []byte(fmt.Sprintf("%v", fields))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func contentForHash(c Content) any {
	raw, err := json.Marshal(c)
	if err != nil || string(raw) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// messageWire is the JSON form returned by model_dump(): it always carries
// the full attachment list (each attachment applies its own omit-content
// rule) and every metrics field, since "no metric is ever discarded on
// save".
type messageWire struct {
	ID          string         `json:"id"`
	Role        Role           `json:"role"`
	Sequence    int            `json:"sequence"`
	Content     Content        `json:"content"`
	Name        string         `json:"name,omitempty"`
	ToolCallID  string         `json:"tool_call_id,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Metrics     MessageMetrics `json:"metrics"`
	Timestamp   string         `json:"timestamp"`
	Source      map[string]any `json:"source,omitempty"`
}

// MarshalJSON implements Message.model_dump().
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageWire{
		ID:          m.ID,
		Role:        m.Role,
		Sequence:    m.Sequence,
		Content:     m.Content,
		Name:        m.Name,
		ToolCallID:  m.ToolCallID,
		ToolCalls:   m.ToolCalls,
		Attachments: m.Attachments,
		Attributes:  m.Attributes,
		Metrics:     m.Metrics,
		Timestamp:   m.Timestamp.UTC().Format(time.RFC3339Nano),
		Source:      m.Source,
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ts := time.Now().UTC()
	if wire.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
		if err != nil {
			return fmt.Errorf("message: parse timestamp: %w", err)
		}
		ts = parsed.UTC()
	}
	*m = Message{
		ID:          wire.ID,
		Role:        wire.Role,
		Sequence:    wire.Sequence,
		Content:     wire.Content,
		Name:        wire.Name,
		ToolCallID:  wire.ToolCallID,
		ToolCalls:   wire.ToolCalls,
		Attachments: wire.Attachments,
		Attributes:  wire.Attributes,
		Metrics:     wire.Metrics,
		Timestamp:   ts,
		Source:      wire.Source,
	}
	return nil
}

// ToChatCompletionMessage renders the message in the shape passed to the
// LLM provider (spec.md §4.6): {role, content, sequence, [name],
// [tool_calls], [tool_call_id]}, with non-image attachment text/overview/
// error appended to string content for user messages. Tool messages are
// never augmented this way.
func (m *Message) ToChatCompletionMessage() map[string]any {
	out := map[string]any{
		"role":     string(m.Role),
		"sequence": m.Sequence,
	}

	content := m.Content
	if m.Role != RoleTool && content.IsText() && len(m.Attachments) > 0 {
		if appended := appendAttachmentText(content.String(), m.Attachments); appended != content.String() {
			content = NewTextContent(appended)
		}
	}

	switch {
	case content.IsText():
		out["content"] = content.String()
	case content.Parts != nil:
		out["content"] = content.Parts
	default:
		out["content"] = ""
	}

	if m.Name != "" {
		out["name"] = m.Name
	}
	if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
		out["tool_calls"] = m.ToolCalls
	}
	if m.Role == RoleTool && m.ToolCallID != "" {
		out["tool_call_id"] = m.ToolCallID
	}
	return out
}

func appendAttachmentText(base string, attachments []Attachment) string {
	var blocks []string
	for _, att := range attachments {
		if att.ProcessedContent == nil {
			continue
		}
		if t, _ := att.ProcessedContent["type"].(string); t == "image" {
			continue
		}
		lines := []string{fmt.Sprintf("--- File: %s ---", att.Filename)}
		if overview, ok := att.ProcessedContent["overview"].(string); ok && overview != "" {
			lines = append(lines, "Overview: "+overview)
		}
		if text, ok := att.ProcessedContent["text"].(string); ok && text != "" {
			lines = append(lines, "Content: "+text)
		}
		if errMsg, ok := att.ProcessedContent["error"].(string); ok && errMsg != "" {
			lines = append(lines, "Error: "+errMsg)
		}
		if len(lines) > 1 {
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
	}
	if len(blocks) == 0 {
		return base
	}
	return base + "\n\n" + strings.Join(blocks, "\n\n")
}
