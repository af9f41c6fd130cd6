package models

import (
	"strings"
	"testing"
	"time"
)

func TestThread_SystemMessageAtSequenceZero(t *testing.T) {
	th := NewThread()
	th.EnsureSystemPrompt("you are a helpful agent")

	if th.Messages[0].Role != RoleSystem {
		t.Fatalf("expected system message at index 0")
	}
	if th.Messages[0].Sequence != 0 {
		t.Fatalf("expected system message sequence 0, got %d", th.Messages[0].Sequence)
	}

	th.AddMessage(NewMessage(RoleUser, NewTextContent("hi"), time.Time{}))
	th.AddMessage(NewMessage(RoleAssistant, NewTextContent("hello"), time.Time{}))

	for _, m := range th.Messages[1:] {
		if m.Sequence == 0 {
			t.Fatalf("non-system message must not have sequence 0")
		}
	}
}

func TestThread_EnsureSystemPromptIdempotent(t *testing.T) {
	th := NewThread()
	th.EnsureSystemPrompt("prompt A")
	firstID := th.Messages[0].ID
	th.EnsureSystemPrompt("prompt A")
	if th.Messages[0].ID != firstID {
		t.Fatalf("re-ensuring identical prompt must not mutate the system message")
	}
	th.EnsureSystemPrompt("prompt B")
	if th.Messages[0].Content.String() != "prompt B" {
		t.Fatalf("expected system prompt to be rewritten")
	}
	if len(th.Messages) != 1 {
		t.Fatalf("expected exactly one system message, got %d", len(th.Messages))
	}
}

func TestThread_SequenceIncrementsAcrossNonSystemMessages(t *testing.T) {
	th := NewThread()
	th.EnsureSystemPrompt("sys")
	th.AddMessage(NewMessage(RoleUser, NewTextContent("one"), time.Time{}))
	th.AddMessage(NewMessage(RoleAssistant, NewTextContent("two"), time.Time{}))
	th.AddMessage(NewMessage(RoleTool, NewTextContent("three"), time.Time{}))

	want := []int{0, 1, 2, 3}
	for i, m := range th.Messages {
		if m.Sequence != want[i] {
			t.Fatalf("message %d: expected sequence %d, got %d", i, want[i], m.Sequence)
		}
	}
}

func TestThread_TitleDerivedFromFirstUserMessage(t *testing.T) {
	th := NewThread()
	if th.Title != DefaultTitle {
		t.Fatalf("expected default title, got %q", th.Title)
	}
	th.AddMessage(NewMessage(RoleUser, NewTextContent("Hello"), time.Time{}))
	if th.Title != "Hello" {
		t.Fatalf("expected title %q, got %q", "Hello", th.Title)
	}

	// A later user message must not overwrite an already-derived title.
	th.AddMessage(NewMessage(RoleUser, NewTextContent("Something else entirely"), time.Time{}))
	if th.Title != "Hello" {
		t.Fatalf("title should not change once derived, got %q", th.Title)
	}
}

func TestThread_TitleTruncatedAt30Chars(t *testing.T) {
	th := NewThread()
	long := "This is a very long first message that exceeds thirty characters"
	th.AddMessage(NewMessage(RoleUser, NewTextContent(long), time.Time{}))

	if !strings.HasSuffix(th.Title, "…") {
		t.Fatalf("expected ellipsis suffix on truncated title, got %q", th.Title)
	}
	runeLen := len([]rune(strings.TrimSuffix(th.Title, "…")))
	if runeLen != 30 {
		t.Fatalf("expected 30 characters before ellipsis, got %d (%q)", runeLen, th.Title)
	}
}

func TestThread_MetricsEqualsSumOfMessageMetrics(t *testing.T) {
	th := NewThread()
	m1 := NewMessage(RoleAssistant, NewTextContent("a"), time.Time{})
	m1.Metrics = MessageMetrics{Model: "gpt-4o", Usage: Usage{CompletionTokens: 10, PromptTokens: 5, TotalTokens: 15}}
	th.AddMessage(m1)

	m2 := NewMessage(RoleAssistant, NewTextContent("b"), time.Time{})
	m2.Metrics = MessageMetrics{Model: "gpt-4o", Usage: Usage{CompletionTokens: 3, PromptTokens: 2, TotalTokens: 5}}
	th.AddMessage(m2)

	if th.Metrics.CompletionTokens != 13 || th.Metrics.PromptTokens != 7 || th.Metrics.TotalTokens != 20 {
		t.Fatalf("unexpected aggregated metrics: %+v", th.Metrics)
	}
	usage := th.Metrics.ModelUsage["gpt-4o"]
	if usage.Calls != 2 || usage.TotalTokens != 20 {
		t.Fatalf("unexpected per-model usage: %+v", usage)
	}
}

func TestThread_UpdatedAtRewrittenOnMutation(t *testing.T) {
	th := NewThread()
	before := th.UpdatedAt
	time.Sleep(time.Millisecond)
	th.AddMessage(NewMessage(RoleUser, NewTextContent("x"), time.Time{}))
	if !th.UpdatedAt.After(before) {
		t.Fatalf("expected updated_at to advance after AddMessage")
	}
}
