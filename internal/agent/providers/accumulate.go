package providers

import "strings"

// pendingToolCall assembles one streamed tool call by index while a
// provider's Complete method drains its own Stream implementation.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// wrapError converts a raw SDK/transport error into a ProviderError so
// callers (and the agent loop above them) can inspect FailoverReason
// without depending on each provider's error types.
func wrapError(err error, provider, model string) error {
	if err == nil {
		return nil
	}
	return NewProviderError(provider, model, err)
}
