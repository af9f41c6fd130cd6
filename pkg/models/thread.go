package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the title a Thread carries until a user message supplies
// one (spec.md §3).
const DefaultTitle = "Untitled Thread"

// titleMaxLen is the truncation threshold resolved in spec.md §9's Open
// Question: the dominant test suite uses 30, not 20.
const titleMaxLen = 30

// Thread represents a conversation (spec.md §3).
type Thread struct {
	ID         string
	Title      string
	Attributes map[string]any
	Source     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Messages   []*Message
	Metrics    ThreadMetrics
}

// NewThread creates an empty thread with a generated id and default title.
func NewThread() *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:         uuid.NewString(),
		Title:      DefaultTitle,
		Attributes: map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EnsureSystemPrompt inserts prompt as the thread's system message if none
// exists, or rewrites it in place if the existing system message differs.
// It is idempotent when content already matches (spec.md §4.6).
func (t *Thread) EnsureSystemPrompt(prompt string) {
	if len(t.Messages) == 0 || t.Messages[0].Role != RoleSystem {
		sys := NewMessage(RoleSystem, NewTextContent(prompt), time.Now())
		sys.Sequence = 0
		sys.ID = sys.ComputeID()
		t.Messages = append([]*Message{sys}, t.Messages...)
		t.touch()
		return
	}
	if t.Messages[0].Content.String() != prompt {
		t.Messages[0].Content = NewTextContent(prompt)
		t.Messages[0].ID = t.Messages[0].ComputeID()
		t.touch()
	}
}

// AddMessage implements the Thread state machine from spec.md §4.6: a
// system message is inserted at index 0/sequence 0 (existing system
// messages are only replaced via EnsureSystemPrompt); any other message is
// appended with sequence = max(existing non-system sequence) + 1 (or 1 if
// none exist). UpdatedAt, title derivation, and metrics aggregation follow.
func (t *Thread) AddMessage(m *Message) {
	if m.Role == RoleSystem {
		if len(t.Messages) > 0 && t.Messages[0].Role == RoleSystem {
			t.Messages[0] = m
		} else {
			t.Messages = append([]*Message{m}, t.Messages...)
		}
		m.Sequence = 0
	} else {
		m.Sequence = t.nextSequence()
		t.Messages = append(t.Messages, m)
	}
	m.ID = m.ComputeID()

	t.Metrics.Add(m.Metrics)
	t.maybeDeriveTitle(m)
	t.touch()
}

func (t *Thread) nextSequence() int {
	max := 0
	for _, m := range t.Messages {
		if m.Role == RoleSystem {
			continue
		}
		if m.Sequence > max {
			max = m.Sequence
		}
	}
	return max + 1
}

func (t *Thread) maybeDeriveTitle(m *Message) {
	if t.Title != "" && t.Title != DefaultTitle {
		return
	}
	if m.Role != RoleUser || !m.Content.IsText() {
		return
	}
	text := m.Content.String()
	if text == "" {
		return
	}
	if len(text) > titleMaxLen {
		runes := []rune(text)
		if len(runes) > titleMaxLen {
			text = string(runes[:titleMaxLen]) + "…"
		}
	}
	t.Title = text
}

func (t *Thread) touch() {
	t.UpdatedAt = time.Now().UTC()
}

// GetMessagesForChatCompletion returns every message's chat-completion
// projection in stored order (spec.md §4.6).
func (t *Thread) GetMessagesForChatCompletion() []map[string]any {
	out := make([]map[string]any, len(t.Messages))
	for i, m := range t.Messages {
		out[i] = m.ToChatCompletionMessage()
	}
	return out
}

// LastMessageByRole returns the last message with the given role, or nil.
func (t *Thread) LastMessageByRole(role Role) *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == role {
			return t.Messages[i]
		}
	}
	return nil
}

// SystemMessage returns the thread's system message, or nil if absent.
func (t *Thread) SystemMessage() *Message {
	if len(t.Messages) > 0 && t.Messages[0].Role == RoleSystem {
		return t.Messages[0]
	}
	return nil
}

// threadWire is the JSON form used for persistence and transport.
type threadWire struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Source     map[string]any `json:"source,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
	Messages   []*Message     `json:"messages"`
	Metrics    ThreadMetrics  `json:"metrics"`
}

// MarshalJSON serializes the thread's JSON form (spec.md §6's "Thread JSON
// form"), with ISO-8601 UTC-offset timestamps.
func (t Thread) MarshalJSON() ([]byte, error) {
	return json.Marshal(threadWire{
		ID:         t.ID,
		Title:      t.Title,
		Attributes: t.Attributes,
		Source:     t.Source,
		CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Messages:   t.Messages,
		Metrics:    t.Metrics,
	})
}

// UnmarshalJSON reverses MarshalJSON, normalizing naïve timestamps to UTC
// per spec.md §3's "auto-rewritten to UTC if naïve on input".
func (t *Thread) UnmarshalJSON(data []byte) error {
	var wire threadWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	created, err := parseThreadTime(wire.CreatedAt)
	if err != nil {
		return fmt.Errorf("thread: parse created_at: %w", err)
	}
	updated, err := parseThreadTime(wire.UpdatedAt)
	if err != nil {
		return fmt.Errorf("thread: parse updated_at: %w", err)
	}
	*t = Thread{
		ID:         wire.ID,
		Title:      wire.Title,
		Attributes: wire.Attributes,
		Source:     wire.Source,
		CreatedAt:  created,
		UpdatedAt:  updated,
		Messages:   wire.Messages,
		Metrics:    wire.Metrics,
	}
	return nil
}

func parseThreadTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// A timestamp without a zone offset is read as UTC.
		naive, naiveErr := time.Parse("2006-01-02T15:04:05.999999999", s)
		if naiveErr != nil {
			return time.Time{}, err
		}
		return naive, nil
	}
	return parsed.UTC(), nil
}
