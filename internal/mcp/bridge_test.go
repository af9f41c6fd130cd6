package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flores8/tyler/internal/toolruntime"
)

// newFakeMCPServer serves initialize/tools/list/tools/call over plain HTTP
// JSON, enough to exercise the sse transport's request/response cycle.
func newFakeMCPServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req jsonrpcRequest
		_ = json.Unmarshal(body, &req)

		var result any
		switch req.Method {
		case "initialize":
			result = map[string]any{"protocolVersion": "2024-11-05"}
		case "tools/list":
			result = listToolsResult{Tools: []RemoteTool{
				{Name: "echo", Description: "echoes input", InputSchema: json.RawMessage(`{"type":"object"}`)},
			}}
		case "tools/call":
			result = callToolResult{Content: []callToolContentBlock{{Type: "text", Text: "ok"}}}
		}
		resultBytes, _ := json.Marshal(result)
		idBytes, _ := json.Marshal(req.ID)
		resp := jsonrpcResponse{JSONRPC: "2.0", ID: idBytes, Result: resultBytes}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func TestBridge_InitializeRegistersNamespacedTool(t *testing.T) {
	srv := newFakeMCPServer(t)
	defer srv.Close()

	runtime := toolruntime.New()
	bridge := NewBridge()
	cfg := ServerConfig{Name: "echoserver", Transport: TransportSSE, URL: srv.URL + "/mcp", StartupTimeout: 2 * time.Second}

	if err := bridge.Initialize(context.Background(), []ServerConfig{cfg}, runtime); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	entry, ok := runtime.Get("echoserver-echo")
	if !ok {
		t.Fatalf("expected tool echoserver-echo to be registered")
	}
	attrs := runtime.GetToolAttributes("echoserver-echo")
	if attrs["source"] != "mcp" || attrs["server"] != "echoserver" || attrs["original_name"] != "echo" {
		t.Fatalf("unexpected attributes: %+v", attrs)
	}

	res, err := entry.Tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Content != "ok" {
		t.Fatalf("unexpected content: %q", res.Content)
	}

	if err := bridge.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}

func TestBridge_OptionalServerFailureIsSkipped(t *testing.T) {
	runtime := toolruntime.New()
	bridge := NewBridge()
	cfg := ServerConfig{Name: "unreachable", Transport: TransportSSE, URL: "http://127.0.0.1:1/mcp", Required: false, StartupTimeout: 200 * time.Millisecond}

	if err := bridge.Initialize(context.Background(), []ServerConfig{cfg}, runtime); err != nil {
		t.Fatalf("Initialize should not fail for an optional server: %v", err)
	}
	if len(runtime.GetToolsForChatCompletion()) != 0 {
		t.Fatalf("expected no tools registered from the unreachable optional server")
	}
}

func TestBridge_RequiredServerFailureAborts(t *testing.T) {
	runtime := toolruntime.New()
	bridge := NewBridge()
	cfg := ServerConfig{Name: "unreachable", Transport: TransportSSE, URL: "http://127.0.0.1:1/mcp", Required: true, StartupTimeout: 200 * time.Millisecond}

	if err := bridge.Initialize(context.Background(), []ServerConfig{cfg}, runtime); err == nil {
		t.Fatalf("expected Initialize to fail for a required unreachable server")
	}
}
