package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/flores8/tyler/internal/agent"
)

// Classifier is the agent-selection fallback used when a thread's last
// user message carries no @mention (spec.md §4.8 step 2): a single chat
// completion issued against a fixed prompt listing each registered
// agent's purpose, expected to answer with exactly one registered name.
type Classifier interface {
	Classify(ctx context.Context, message string, candidates []Candidate) (string, error)
}

// Candidate describes one agent the classifier may choose between.
type Candidate struct {
	Name    string
	Purpose string
}

// LLMClassifier implements Classifier over any agent.LLMProvider, using a
// single non-streaming completion.
type LLMClassifier struct {
	Provider agent.LLMProvider
	Model    string
}

// NewLLMClassifier returns a Classifier backed by provider, issuing
// completions against model.
func NewLLMClassifier(provider agent.LLMProvider, model string) *LLMClassifier {
	return &LLMClassifier{Provider: provider, Model: model}
}

// Classify asks the underlying provider to pick one candidate name for
// message. The prompt instructs the model to answer with exactly one
// name and nothing else; Classify trims and lower-cases the response
// before the Router matches it back against the registry.
func (c *LLMClassifier) Classify(ctx context.Context, message string, candidates []Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	var prompt strings.Builder
	prompt.WriteString("You are a routing classifier. Given a user message, choose the single best agent to handle it from this list:\n\n")
	for _, c := range candidates {
		purpose := c.Purpose
		if purpose == "" {
			purpose = "(no stated purpose)"
		}
		fmt.Fprintf(&prompt, "- %s: %s\n", c.Name, purpose)
	}
	prompt.WriteString("\nReply with only the chosen agent's name, exactly as listed, and nothing else.\n\n")
	fmt.Fprintf(&prompt, "User message: %s\n", message)

	req := agent.CompletionRequest{
		Model: c.Model,
		Messages: []map[string]any{
			{"role": "user", "content": prompt.String(), "sequence": 0},
		},
	}

	resp, err := c.Provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("router: classify: %w", err)
	}

	return strings.ToLower(strings.TrimSpace(resp.Content)), nil
}
