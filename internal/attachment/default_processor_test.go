package attachment

import (
	"context"
	"strings"
	"testing"
)

func TestDefaultFileProcessor_MarkdownOverview(t *testing.T) {
	proc := NewDefaultFileProcessor()
	md := "# Report Title\n\nThis is the first paragraph of the report.\n\nMore content follows here."

	result, err := proc.ProcessFile(context.Background(), []byte(md), "report.md", "text/markdown")
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	overview, ok := result["overview"].(string)
	if !ok || overview != "Report Title" {
		t.Fatalf("expected overview to be the first heading text, got %+v", result)
	}
}

func TestDefaultFileProcessor_MarkdownOverviewTruncates(t *testing.T) {
	proc := &DefaultFileProcessor{MaxOverviewChars: 10}
	md := "This paragraph is definitely longer than ten characters."

	result, err := proc.ProcessFile(context.Background(), []byte(md), "notes.md", "text/markdown")
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	overview := result["overview"].(string)
	if len(overview) != 10 {
		t.Fatalf("expected overview truncated to 10 chars, got %q (%d)", overview, len(overview))
	}
}

func TestDefaultFileProcessor_UnsupportedType(t *testing.T) {
	proc := NewDefaultFileProcessor()
	result, err := proc.ProcessFile(context.Background(), []byte("binary"), "data.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("ProcessFile should not error for unsupported types: %v", err)
	}
	errMsg, ok := result["error"].(string)
	if !ok || !strings.Contains(errMsg, "application/octet-stream") {
		t.Fatalf("expected unsupported-type error message, got %+v", result)
	}
}

func TestDefaultFileProcessor_EmptyPDFErrors(t *testing.T) {
	proc := NewDefaultFileProcessor()
	_, err := proc.ProcessFile(context.Background(), []byte{}, "empty.pdf", "application/pdf")
	if err == nil {
		t.Fatalf("expected an error for empty PDF content")
	}
}
