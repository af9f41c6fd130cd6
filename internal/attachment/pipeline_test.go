package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/flores8/tyler/pkg/models"
)

type fakeResolver struct {
	content []byte
	err     error
}

func (f fakeResolver) Get(context.Context, string, string) ([]byte, error) {
	return f.content, f.err
}

type stubProcessor struct {
	result map[string]any
	err    error
}

func (s stubProcessor) ProcessFile(context.Context, []byte, string, string) (map[string]any, error) {
	return s.result, s.err
}

func TestPipeline_ImageShortCircuit(t *testing.T) {
	pipeline := New(nil, stubProcessor{})
	msg := &models.Message{
		Attachments: []models.Attachment{
			{Filename: "pic.png", Content: []byte("\x89PNG\r\n\x1a\n" + "fakepng")},
		},
	}
	if err := pipeline.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process: %v", err)
	}
	att := msg.Attachments[0]
	if att.MimeType != "image/png" {
		t.Fatalf("expected sniffed mime image/png, got %q", att.MimeType)
	}
	if att.ProcessedContent["type"] != "image" {
		t.Fatalf("expected image short-circuit, got %+v", att.ProcessedContent)
	}
	wantB64 := base64.StdEncoding.EncodeToString(att.Content)
	if att.ProcessedContent["content"] != wantB64 {
		t.Fatalf("expected base64 content to match original bytes")
	}
}

func TestPipeline_DelegatesNonImageToProcessor(t *testing.T) {
	pipeline := New(nil, stubProcessor{result: map[string]any{"type": "text", "text": "extracted"}})
	msg := &models.Message{
		Attachments: []models.Attachment{
			{Filename: "doc.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.4 fake")},
		},
	}
	if err := pipeline.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if msg.Attachments[0].ProcessedContent["text"] != "extracted" {
		t.Fatalf("expected processor result to be stored, got %+v", msg.Attachments[0].ProcessedContent)
	}
}

func TestPipeline_ProcessorErrorIsCaptured(t *testing.T) {
	pipeline := New(nil, stubProcessor{err: fmt.Errorf("kaboom")})
	msg := &models.Message{
		Attachments: []models.Attachment{
			{Filename: "doc.bin", MimeType: "application/octet-stream", Content: []byte("bytes")},
		},
	}
	if err := pipeline.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process should never return an error: %v", err)
	}
	errMsg, ok := msg.Attachments[0].ProcessedContent["error"].(string)
	if !ok || errMsg == "" {
		t.Fatalf("expected captured error in processed_content, got %+v", msg.Attachments[0].ProcessedContent)
	}
}

func TestPipeline_UnresolvableContentIsCaptured(t *testing.T) {
	pipeline := New(nil, stubProcessor{})
	msg := &models.Message{
		Attachments: []models.Attachment{
			{Filename: "missing.txt", FileID: "abc123"},
		},
	}
	if err := pipeline.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process should never return an error: %v", err)
	}
	if _, ok := msg.Attachments[0].ProcessedContent["error"].(string); !ok {
		t.Fatalf("expected an error captured for unresolvable stored attachment, got %+v", msg.Attachments[0].ProcessedContent)
	}
}

func TestPipeline_ResolvesStoredAttachmentViaResolver(t *testing.T) {
	resolver := fakeResolver{content: []byte("stored bytes")}
	pipeline := New(resolver, stubProcessor{result: map[string]any{"type": "text", "text": "stored bytes"}})
	msg := &models.Message{
		Attachments: []models.Attachment{
			{Filename: "note.txt", MimeType: "text/plain", FileID: "file-1", StoragePath: "fi/le-1.txt"},
		},
	}
	if err := pipeline.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if msg.Attachments[0].ProcessedContent["text"] != "stored bytes" {
		t.Fatalf("expected resolver-backed bytes to reach the processor, got %+v", msg.Attachments[0].ProcessedContent)
	}
}
