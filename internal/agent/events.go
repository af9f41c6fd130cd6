package agent

import "github.com/flores8/tyler/pkg/models"

// EventType tags a StreamEvent's payload (spec.md §4.7.2).
type EventType string

const (
	// EventContentChunk carries one fragment of assistant text as it
	// streams in.
	EventContentChunk EventType = "content_chunk"
	// EventAssistantMessage carries a complete assistant Message once its
	// streamed chunks have been assembled and it has been added to the
	// thread; the thread is saved after the event is sent.
	EventAssistantMessage EventType = "assistant_message"
	// EventToolMessage carries a complete tool-result Message as it is added
	// to the thread; the thread is saved after the iteration's tool events.
	EventToolMessage EventType = "tool_message"
	// EventError carries a terminal streaming/persistence failure; no
	// further events follow it.
	EventError EventType = "error"
	// EventComplete marks the end of a turn with no error.
	EventComplete EventType = "complete"
)

// StreamEvent is one ordered update emitted by Agent.GoStream.
type StreamEvent struct {
	Type EventType

	// Content holds the text fragment for EventContentChunk.
	Content string

	// Message holds the assembled Message for EventAssistantMessage and
	// EventToolMessage.
	Message *models.Message

	// Err holds the failure description for EventError.
	Err string
}
