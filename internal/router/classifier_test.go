package router

import (
	"context"
	"testing"

	"github.com/flores8/tyler/internal/agent"
	"github.com/flores8/tyler/internal/agent/agenttest"
)

func TestLLMClassifier_ClassifyTrimsAndLowercasesResponse(t *testing.T) {
	provider := agenttest.NewFakeProvider().AddResponse(&agent.CompletionResponse{
		Model:   "gpt-4o",
		Content: "  Billing  ",
	})
	classifier := NewLLMClassifier(provider, "gpt-4o")

	choice, err := classifier.Classify(context.Background(), "what's my balance?", []Candidate{
		{Name: "billing", Purpose: "handles invoices"},
		{Name: "support", Purpose: "handles tickets"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if choice != "billing" {
		t.Fatalf("expected trimmed/lowercased choice billing, got %q", choice)
	}

	if len(provider.Requests) != 1 {
		t.Fatalf("expected exactly one classify request, got %d", len(provider.Requests))
	}
}

func TestLLMClassifier_ClassifyNoCandidatesReturnsEmpty(t *testing.T) {
	classifier := NewLLMClassifier(agenttest.NewFakeProvider(), "gpt-4o")

	choice, err := classifier.Classify(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if choice != "" {
		t.Fatalf("expected empty choice with no candidates, got %q", choice)
	}
}
