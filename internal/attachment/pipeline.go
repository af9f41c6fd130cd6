// Package attachment prepares a message's attachments for the model and
// for persistence: resolving bytes, sniffing MIME types, short-circuiting
// images, and handing everything else off to a FileProcessor (spec.md
// §4.5).
package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/flores8/tyler/pkg/models"
)

// FileProcessor extracts a processed_content payload from a non-image
// attachment's bytes. The default implementation (DefaultFileProcessor)
// handles PDF and Markdown; callers may supply their own for additional
// file types.
type FileProcessor interface {
	ProcessFile(ctx context.Context, content []byte, filename, mimeType string) (map[string]any, error)
}

// Pipeline runs the five-step attachment preparation sequence from
// spec.md §4.5 over every attachment on a message.
type Pipeline struct {
	resolver  models.ContentResolver
	processor FileProcessor
	log       *slog.Logger
}

// New creates a Pipeline. resolver fetches bytes for already-stored
// attachments (ordinarily a filestore.LocalStore or S3Store); processor
// handles non-image attachments and defaults to DefaultFileProcessor when
// nil.
func New(resolver models.ContentResolver, processor FileProcessor) *Pipeline {
	if processor == nil {
		processor = NewDefaultFileProcessor()
	}
	return &Pipeline{
		resolver:  resolver,
		processor: processor,
		log:       slog.Default().With("component", "attachment.pipeline"),
	}
}

// Process runs the pipeline over every attachment on msg, mutating each
// Attachment's MimeType and ProcessedContent in place. It never returns an
// error for a single attachment's processing failure — those are captured
// into that attachment's ProcessedContent (spec.md §4.5 step 5).
func (p *Pipeline) Process(ctx context.Context, msg *models.Message) error {
	for i := range msg.Attachments {
		p.processOne(ctx, &msg.Attachments[i])
	}
	return nil
}

func (p *Pipeline) processOne(ctx context.Context, att *models.Attachment) {
	content, err := att.GetContentBytes(ctx, p.resolver)
	if err != nil {
		att.ProcessedContent = map[string]any{"error": fmt.Sprintf("Failed to process file: %v", err)}
		return
	}

	if att.MimeType == "" {
		att.MimeType = sniffMimeType(content, att.Filename)
	}

	if strings.HasPrefix(att.MimeType, "image/") {
		att.ProcessedContent = map[string]any{
			"type":      "image",
			"content":   base64.StdEncoding.EncodeToString(content),
			"mime_type": att.MimeType,
		}
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				att.ProcessedContent = map[string]any{"error": fmt.Sprintf("Failed to process file: %v", r)}
			}
		}()
		result, err := p.processor.ProcessFile(ctx, content, att.Filename, att.MimeType)
		if err != nil {
			att.ProcessedContent = map[string]any{"error": fmt.Sprintf("Failed to process file: %v", err)}
			return
		}
		att.ProcessedContent = result
	}()
}

// sniffMimeType detects a content type from the attachment's bytes,
// falling back to net/http's sniffer the way the FileStore does for
// uploads that arrive without an extension hint.
func sniffMimeType(content []byte, filename string) string {
	if len(content) == 0 {
		return "application/octet-stream"
	}
	detected := http.DetectContentType(content)
	if strings.HasSuffix(filename, ".md") || strings.HasSuffix(filename, ".markdown") {
		return "text/markdown"
	}
	return detected
}
