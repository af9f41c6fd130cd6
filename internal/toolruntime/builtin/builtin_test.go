package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/flores8/tyler/internal/toolruntime"
)

func TestCalculatorTools_Add(t *testing.T) {
	bundle := CalculatorTools()
	if len(bundle) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(bundle))
	}
	res, err := bundle[0].Implementation.Execute(context.Background(), json.RawMessage(`{"operation":"add","a":2,"b":3}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var out struct {
		Result float64 `json:"result"`
	}
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out.Result != 5 {
		t.Fatalf("expected 5, got %v", out.Result)
	}
}

func TestCalculatorTools_DivideByZero(t *testing.T) {
	bundle := CalculatorTools()
	res, err := bundle[0].Implementation.Execute(context.Background(), json.RawMessage(`{"operation":"divide","a":1,"b":0}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected division by zero to produce an error result")
	}
}

func TestFilesTools_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	bundle := FilesTools(dir)
	var write, read toolruntime.Tool
	for _, e := range bundle {
		switch e.Definition.Name {
		case "write_file":
			write = e.Implementation
		case "read_file":
			read = e.Implementation
		}
	}

	_, err := write.Execute(context.Background(), json.RawMessage(`{"path":"note.txt","content":"hello"}`))
	if err != nil {
		t.Fatalf("write Execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "note.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	res, err := read.Execute(context.Background(), json.RawMessage(`{"path":"note.txt"}`))
	if err != nil {
		t.Fatalf("read Execute: %v", err)
	}
	if res.Content != "hello" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
}

func TestFilesTools_RejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	bundle := FilesTools(dir)
	var read toolruntime.Tool
	for _, e := range bundle {
		if e.Definition.Name == "read_file" {
			read = e.Implementation
		}
	}
	res, err := read.Execute(context.Background(), json.RawMessage(`{"path":"../../etc/passwd"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected escaping path to be rejected")
	}
}

func TestWebTools_FetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	bundle := WebTools(srv.Client())
	res, err := bundle[0].Implementation.Execute(context.Background(), json.RawMessage(`{"url":"`+srv.URL+`","max_chars":4}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var out struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Content != "0123" || !out.Truncated {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestWebTools_RejectsNonHTTPScheme(t *testing.T) {
	bundle := WebTools(nil)
	res, err := bundle[0].Implementation.Execute(context.Background(), json.RawMessage(`{"url":"file:///etc/passwd"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected non-http scheme to be rejected")
	}
}
