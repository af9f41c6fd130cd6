package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailoverReason
	}{
		{"nil", nil, FailoverUnknown},
		{"timeout", errors.New("context deadline exceeded"), FailoverTimeout},
		{"rate limit", errors.New("429 Too Many Requests"), FailoverRateLimit},
		{"auth", errors.New("401 invalid api key"), FailoverAuth},
		{"billing", errors.New("insufficient quota"), FailoverBilling},
		{"content filter", errors.New("blocked by content_filter"), FailoverContentFilter},
		{"model unavailable", errors.New("model not found"), FailoverModelUnavailable},
		{"server error", errors.New("503 service unavailable"), FailoverServerError},
		{"unclassified", errors.New("something went sideways"), FailoverUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Fatalf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailoverReason_IsRetryable(t *testing.T) {
	tests := []struct {
		reason FailoverReason
		want   bool
	}{
		{FailoverRateLimit, true},
		{FailoverTimeout, true},
		{FailoverServerError, true},
		{FailoverAuth, false},
		{FailoverBilling, false},
		{FailoverModelUnavailable, false},
		{FailoverContentFilter, false},
		{FailoverUnknown, false},
	}

	for _, tt := range tests {
		if got := tt.reason.IsRetryable(); got != tt.want {
			t.Fatalf("%s.IsRetryable() = %v, want %v", tt.reason, got, tt.want)
		}
	}
}

func TestNewProviderError(t *testing.T) {
	cause := errors.New("429 rate limited")
	err := NewProviderError("openai", "gpt-4o", cause)

	if err.Reason != FailoverRateLimit {
		t.Fatalf("expected Reason to be derived via ClassifyError, got %q", err.Reason)
	}
	if err.Provider != "openai" || err.Model != "gpt-4o" {
		t.Fatalf("expected provider/model to be preserved, got %+v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty Error() string")
	}
}

func TestNewProviderError_NilCause(t *testing.T) {
	err := NewProviderError("anthropic", "claude-3", nil)
	if err.Reason != FailoverUnknown {
		t.Fatalf("expected FailoverUnknown for a nil cause, got %q", err.Reason)
	}
}
