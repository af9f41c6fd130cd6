// Package agenttest provides a scripted agent.LLMProvider test double so
// internal/agent's loop/stream tests never reach a real model API.
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/flores8/tyler/internal/agent"
)

// FakeProvider replays a scripted sequence of responses/streams, one per
// call to Complete/Stream respectively. Each call advances its own
// independent counter so a test can script a batch-mode and a
// streaming-mode conversation on the same instance without interference.
type FakeProvider struct {
	mu sync.Mutex

	responses []*agent.CompletionResponse
	streams   [][]agent.StreamChunk

	completeCalls int
	streamCalls   int

	// Requests records every CompletionRequest passed to Complete, in
	// call order, for assertions on what the loop sent upstream.
	Requests []agent.CompletionRequest
}

// NewFakeProvider returns an empty FakeProvider; use AddResponse/AddStream
// to script its calls.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// AddResponse appends one scripted Complete() result.
func (f *FakeProvider) AddResponse(resp *agent.CompletionResponse) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return f
}

// AddStream appends one scripted Stream() chunk sequence.
func (f *FakeProvider) AddStream(chunks []agent.StreamChunk) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, chunks)
	return f
}

func (f *FakeProvider) Complete(_ context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.completeCalls >= len(f.responses) {
		return nil, fmt.Errorf("agenttest: no scripted Complete response for call %d", f.completeCalls)
	}
	resp := f.responses[f.completeCalls]
	f.completeCalls++
	return resp, nil
}

func (f *FakeProvider) Stream(_ context.Context, req agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.streamCalls >= len(f.streams) {
		return nil, fmt.Errorf("agenttest: no scripted Stream response for call %d", f.streamCalls)
	}
	chunks := f.streams[f.streamCalls]
	f.streamCalls++

	ch := make(chan agent.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}
