package router

import (
	"context"
	"testing"
	"time"

	"github.com/flores8/tyler/internal/agent"
	"github.com/flores8/tyler/internal/agent/agenttest"
	"github.com/flores8/tyler/pkg/models"
)

func newTestAgent(t *testing.T, name, purpose string) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{Name: name, Purpose: purpose, ModelName: "gpt-4o"}, agenttest.NewFakeProvider(), nil)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return a
}

func userThread(text string) *models.Thread {
	thread := models.NewThread()
	thread.AddMessage(models.NewMessage(models.RoleUser, models.NewTextContent(text), time.Time{}))
	return thread
}

func TestRegistry_RegisterGetListHas(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Billing", newTestAgent(t, "Billing", "handles invoices"))
	reg.Register("support", newTestAgent(t, "Support", "handles tickets"))

	if !reg.Has("BILLING") {
		t.Fatalf("expected case-insensitive Has to find Billing")
	}
	if _, ok := reg.Get("billing"); !ok {
		t.Fatalf("expected Get to find billing")
	}
	if got := reg.List(); len(got) != 2 || got[0] != "billing" || got[1] != "support" {
		t.Fatalf("expected registration-order list, got %v", got)
	}
	if reg.Has("missing") {
		t.Fatalf("did not expect missing agent to be found")
	}
}

func TestRouter_Select_MentionWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register("billing", newTestAgent(t, "billing", ""))
	reg.Register("support", newTestAgent(t, "support", ""))

	r := New(reg, nil)
	thread := userThread("hey @support can you help with my order?")

	name, ok := r.Select(context.Background(), thread)
	if !ok || name != "support" {
		t.Fatalf("expected mention match to support, got %q %v", name, ok)
	}
}

func TestRouter_Select_MentionOfUnknownAgentFallsThroughToClassifier(t *testing.T) {
	reg := NewRegistry()
	reg.Register("billing", newTestAgent(t, "billing", "handles invoices"))

	classifier := fakeClassifier{choice: "billing"}
	r := New(reg, classifier)
	thread := userThread("@nobody please route this")

	name, ok := r.Select(context.Background(), thread)
	if !ok || name != "billing" {
		t.Fatalf("expected classifier fallback to billing, got %q %v", name, ok)
	}
}

func TestRouter_Select_NoMentionUsesClassifier(t *testing.T) {
	reg := NewRegistry()
	reg.Register("billing", newTestAgent(t, "billing", "handles invoices"))
	reg.Register("support", newTestAgent(t, "support", "handles tickets"))

	classifier := fakeClassifier{choice: "support"}
	r := New(reg, classifier)
	thread := userThread("my order never arrived")

	name, ok := r.Select(context.Background(), thread)
	if !ok || name != "support" {
		t.Fatalf("expected classifier choice support, got %q %v", name, ok)
	}
}

func TestRouter_Select_ClassifierChoosesUnregisteredNameFails(t *testing.T) {
	reg := NewRegistry()
	reg.Register("billing", newTestAgent(t, "billing", "handles invoices"))

	classifier := fakeClassifier{choice: "ghost"}
	r := New(reg, classifier)
	thread := userThread("anything")

	if _, ok := r.Select(context.Background(), thread); ok {
		t.Fatalf("expected no selection when classifier names an unregistered agent")
	}
}

func TestRouter_Select_NoMentionNoClassifierReturnsFalse(t *testing.T) {
	reg := NewRegistry()
	reg.Register("billing", newTestAgent(t, "billing", ""))

	r := New(reg, nil)
	thread := userThread("no mention here")

	if _, ok := r.Select(context.Background(), thread); ok {
		t.Fatalf("expected no selection without a mention or classifier")
	}
}

func TestRouter_Select_EmptyThreadReturnsFalse(t *testing.T) {
	reg := NewRegistry()
	r := New(reg, nil)

	if _, ok := r.Select(context.Background(), models.NewThread()); ok {
		t.Fatalf("expected no selection for a thread with no user message")
	}
}

type fakeClassifier struct {
	choice string
}

func (f fakeClassifier) Classify(context.Context, string, []Candidate) (string, error) {
	return f.choice, nil
}
