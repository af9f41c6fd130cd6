package router

import (
	"context"
	"regexp"

	"github.com/flores8/tyler/pkg/models"
)

// mentionPattern matches @name tokens; names may contain word characters
// and hyphens so multi-word persona slugs like @support-bot still match.
var mentionPattern = regexp.MustCompile(`@([\w-]+)`)

// Router selects an agent name from a Registry for a thread's next turn
// (spec.md §4.8). It never mutates the thread; the caller decides what
// to do when Select returns false.
type Router struct {
	registry   *Registry
	classifier Classifier
}

// New returns a Router over registry. classifier may be nil, in which
// case Select only ever resolves via @mention.
func New(registry *Registry, classifier Classifier) *Router {
	return &Router{registry: registry, classifier: classifier}
}

// Select picks an agent name for thread's next turn:
//  1. Scan the last user message for @name mentions; the first one that
//     matches a registered agent (case-insensitive) wins.
//  2. Otherwise, if a classifier is configured, ask it to choose among
//     every registered agent's stated purpose; a response matching a
//     registered name wins.
//
// Select returns ("", false) when neither step resolves an agent.
func (r *Router) Select(ctx context.Context, thread *models.Thread) (string, bool) {
	last := thread.LastMessageByRole(models.RoleUser)
	if last == nil {
		return "", false
	}
	text := last.Content.String()

	for _, match := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if r.registry.Has(name) {
			return name, true
		}
	}

	if r.classifier == nil {
		return "", false
	}

	names := r.registry.List()
	if len(names) == 0 {
		return "", false
	}
	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		purpose := ""
		if a, ok := r.registry.Get(name); ok {
			purpose = a.Purpose()
		}
		candidates = append(candidates, Candidate{Name: name, Purpose: purpose})
	}

	choice, err := r.classifier.Classify(ctx, text, candidates)
	if err != nil || choice == "" {
		return "", false
	}
	if !r.registry.Has(choice) {
		return "", false
	}
	return choice, true
}
