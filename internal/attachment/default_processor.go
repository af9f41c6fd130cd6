package attachment

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultFileProcessor extracts text from PDFs via github.com/ledongthuc/pdf
// and a short overview from Markdown via github.com/yuin/goldmark,
// returning `{error: "unsupported file type: <mime>"}` for everything
// else (spec.md §4.5).
type DefaultFileProcessor struct {
	// MaxOverviewChars bounds the Markdown overview length; 0 uses the
	// package default.
	MaxOverviewChars int
}

// NewDefaultFileProcessor returns a DefaultFileProcessor with standard
// limits.
func NewDefaultFileProcessor() *DefaultFileProcessor {
	return &DefaultFileProcessor{}
}

const defaultOverviewChars = 500

func (d *DefaultFileProcessor) ProcessFile(_ context.Context, content []byte, filename, mimeType string) (map[string]any, error) {
	switch {
	case mimeType == "application/pdf" || strings.HasSuffix(filename, ".pdf"):
		return d.processPDF(content)
	case mimeType == "text/markdown" || strings.HasSuffix(filename, ".md") || strings.HasSuffix(filename, ".markdown"):
		return d.processMarkdown(content)
	default:
		return map[string]any{"error": fmt.Sprintf("unsupported file type: %s", mimeType)}, nil
	}
}

func (d *DefaultFileProcessor) processPDF(content []byte) (map[string]any, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(strings.TrimSpace(pageText))
	}

	return map[string]any{
		"type":  "text",
		"text":  strings.TrimSpace(text.String()),
		"pages": pages,
	}, nil
}

func (d *DefaultFileProcessor) processMarkdown(content []byte) (map[string]any, error) {
	max := d.MaxOverviewChars
	if max <= 0 {
		max = defaultOverviewChars
	}

	md := goldmark.New()
	reader := text.NewReader(content)
	doc := md.Parser().Parse(reader)

	overview := firstPlainTextBlock(doc, content, max)
	return map[string]any{
		"type":     "text",
		"overview": overview,
	}, nil
}

// firstPlainTextBlock walks the Markdown AST and returns the first
// heading or paragraph's plain text, truncated to max characters. It
// collects *ast.Text/*ast.String leaves the same way the teacher's
// telegramRenderer does, rather than relying on any Node.Text convenience.
func firstPlainTextBlock(doc ast.Node, source []byte, max int) string {
	var found strings.Builder
	var inTarget bool
	var done bool

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if done {
			return ast.WalkStop, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph:
			if entering {
				inTarget = found.Len() == 0
			} else if inTarget && found.Len() > 0 {
				done = true
				return ast.WalkStop, nil
			}
		case ast.KindText:
			if entering && inTarget {
				t := n.(*ast.Text)
				found.Write(t.Segment.Value(source))
			}
		case ast.KindString:
			if entering && inTarget {
				s := n.(*ast.String)
				found.Write(s.Value)
			}
		}
		return ast.WalkContinue, nil
	})

	result := strings.TrimSpace(found.String())
	if len(result) > max {
		result = result[:max]
	}
	return result
}
