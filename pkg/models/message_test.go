package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMessageComputeID_Deterministic(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewMessage(RoleUser, NewTextContent("hello"), ts)
	a.Sequence = 1

	b := &Message{Role: RoleUser, Content: NewTextContent("hello"), Sequence: 1, Timestamp: ts}

	if a.ComputeID() != b.ComputeID() {
		t.Fatalf("expected identical ids for identical hash fields, got %q vs %q", a.ComputeID(), b.ComputeID())
	}
}

func TestMessageComputeID_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewMessage(RoleAssistant, NewTextContent("hi there"), ts)
	m.Sequence = 2

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ComputeID() != m.ID {
		t.Fatalf("recomputed id %q does not match original %q", decoded.ComputeID(), m.ID)
	}
}

func TestMessageComputeID_DiffersOnContent(t *testing.T) {
	ts := time.Now()
	m1 := NewMessage(RoleUser, NewTextContent("a"), ts)
	m2 := NewMessage(RoleUser, NewTextContent("b"), ts)
	if m1.ID == m2.ID {
		t.Fatal("expected different ids for different content")
	}
}

func TestToChatCompletionMessage_AppendsFileOverview(t *testing.T) {
	m := &Message{
		Role:    RoleUser,
		Content: NewTextContent("look at this"),
		Attachments: []Attachment{
			{
				Filename: "report.pdf",
				ProcessedContent: map[string]any{
					"overview": "a quarterly report",
					"text":     "revenue up 10%",
				},
			},
		},
	}

	out := m.ToChatCompletionMessage()
	content, ok := out["content"].(string)
	if !ok {
		t.Fatalf("expected string content, got %T", out["content"])
	}
	if !strings.Contains(content, "look at this") || !strings.Contains(content, "report.pdf") || !strings.Contains(content, "revenue up 10%") {
		t.Fatalf("unexpected projected content: %q", content)
	}
}

func TestToChatCompletionMessage_ImageAttachmentNotAppended(t *testing.T) {
	m := &Message{
		Role:    RoleUser,
		Content: NewTextContent("see attached"),
		Attachments: []Attachment{
			{Filename: "pic.png", ProcessedContent: map[string]any{"type": "image", "content": "base64"}},
		},
	}
	out := m.ToChatCompletionMessage()
	if out["content"] != "see attached" {
		t.Fatalf("expected image attachment to leave content untouched, got %v", out["content"])
	}
}

func TestToChatCompletionMessage_ToolMessageNotAugmented(t *testing.T) {
	m := &Message{
		Role:       RoleTool,
		Content:    NewTextContent("42"),
		ToolCallID: "call_1",
		Attachments: []Attachment{
			{Filename: "x.txt", ProcessedContent: map[string]any{"text": "should not appear"}},
		},
	}
	out := m.ToChatCompletionMessage()
	if out["content"] != "42" {
		t.Fatalf("tool message content was augmented: %v", out["content"])
	}
	if out["tool_call_id"] != "call_1" {
		t.Fatalf("expected tool_call_id to be set")
	}
}
