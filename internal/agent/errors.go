package agent

import "errors"

// Sentinel errors for the Agent Loop's configuration/validation/not-found
// class (spec.md §7).
var (
	// ErrThreadNotFound is returned (wrapped with the id) when Go is given
	// a thread id that ThreadStore does not recognize.
	ErrThreadNotFound = errors.New("agent: thread not found")

	// ErrNoThreadStore is returned when Go is given a thread id but the
	// Agent was constructed without a ThreadStore to resolve it against.
	ErrNoThreadStore = errors.New("agent: no thread store configured")

	// ErrNoProvider is returned by New when constructed without an
	// LLMProvider; an Agent cannot complete a single turn without one.
	ErrNoProvider = errors.New("agent: no LLMProvider configured")

	// ErrNilThread is returned when GoStream is given a nil thread.
	ErrNilThread = errors.New("agent: nil thread")
)
