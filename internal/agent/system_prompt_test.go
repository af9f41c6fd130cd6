package agent

import (
	"strings"
	"testing"
	"time"
)

func TestRenderSystemPrompt_DefaultsNameAndOmitsEmptySections(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	got := renderSystemPrompt(Config{}, now)

	if !strings.Contains(got, "Your name is Tyler.") {
		t.Fatalf("expected default name Tyler, got %q", got)
	}
	if !strings.Contains(got, "Current date: 2026-07-29 Wednesday") {
		t.Fatalf("expected rendered current date, got %q", got)
	}
	if strings.Contains(got, "Your purpose:") {
		t.Fatalf("expected no purpose section when unset, got %q", got)
	}
}

func TestRenderSystemPrompt_IncludesPurposeAndNotes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := renderSystemPrompt(Config{Name: "Helper", Purpose: "triage support tickets", Notes: "Escalate billing issues."}, now)

	if !strings.Contains(got, "Your name is Helper.") {
		t.Fatalf("expected custom name, got %q", got)
	}
	if !strings.Contains(got, "Your purpose: triage support tickets") {
		t.Fatalf("expected purpose section, got %q", got)
	}
	if !strings.Contains(got, "Escalate billing issues.") {
		t.Fatalf("expected notes section, got %q", got)
	}
}
