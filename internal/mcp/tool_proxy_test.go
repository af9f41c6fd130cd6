package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

var errBoom = errors.New("transport unreachable")

// fakeTransport is an in-memory Transport double for exercising ToolProxy
// without spawning a process or HTTP server.
type fakeTransport struct {
	calls   []string
	result  json.RawMessage
	callErr error
}

func (f *fakeTransport) Start(context.Context) error { return nil }

func (f *fakeTransport) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func (f *fakeTransport) Notify(context.Context, string, any) error { return nil }
func (f *fakeTransport) Close(context.Context) error               { return nil }

func TestToolProxy_ExecuteReturnsJoinedTextContent(t *testing.T) {
	ft := &fakeTransport{result: json.RawMessage(`{"content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}],"isError":false}`)}
	proxy := &ToolProxy{serverName: "filesystem", originalName: "read_file", transport: ft}

	res, err := proxy.Execute(context.Background(), json.RawMessage(`{"path":"a.txt"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result")
	}
	if res.Content != "line one\nline two" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
	if len(ft.calls) != 1 || ft.calls[0] != "tools/call" {
		t.Fatalf("expected a single tools/call, got %v", ft.calls)
	}
}

func TestToolProxy_ExecutePropagatesRemoteIsError(t *testing.T) {
	ft := &fakeTransport{result: json.RawMessage(`{"content":[{"type":"text","text":"boom"}],"isError":true}`)}
	proxy := &ToolProxy{serverName: "filesystem", originalName: "read_file", transport: ft}

	res, err := proxy.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected IsError to propagate from remote result")
	}
}

func TestToolProxy_TransportErrorBecomesToolResult(t *testing.T) {
	ft := &fakeTransport{callErr: errBoom}
	proxy := &ToolProxy{serverName: "filesystem", originalName: "read_file", transport: ft}

	res, err := proxy.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute should capture transport errors into the result, got err: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected IsError result on transport failure")
	}
}

func TestQualifiedName_Name(t *testing.T) {
	proxy := &ToolProxy{serverName: "filesystem", originalName: "read_file"}
	if proxy.Name() != "filesystem-read_file" {
		t.Fatalf("unexpected Name(): %q", proxy.Name())
	}
}
