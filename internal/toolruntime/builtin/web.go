package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/pkg/models"
)

var webFetchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "http/https URL to fetch"},
		"max_chars": {"type": "integer", "minimum": 0}
	},
	"required": ["url"]
}`)

const defaultMaxChars = 10000

// WebTools returns the web_fetch bundle: a lightweight GET + truncation
// tool, grounded on the teacher's web_fetch tool shape but trimmed to a
// plain net/http client (no headless-browser dependency appears anywhere
// in the corpus — see DESIGN.md).
func WebTools(client *http.Client) []toolruntime.BundleEntry {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return []toolruntime.BundleEntry{
		{
			Definition: models.ToolDefinition{
				Name:        "web_fetch",
				Description: "Fetches a URL over HTTP(S) and returns its body, truncated to max_chars.",
				Parameters:  webFetchSchema,
			},
			Implementation: webFetchTool{client: client},
		},
	}
}

type webFetchTool struct {
	client *http.Client
}

func (webFetchTool) Name() string            { return "web_fetch" }
func (webFetchTool) Description() string     { return "Fetches a URL over HTTP(S) and returns its body." }
func (webFetchTool) Schema() json.RawMessage { return webFetchSchema }

func (t webFetchTool) Execute(ctx context.Context, args json.RawMessage) (*toolruntime.ToolResult, error) {
	var parsed struct {
		URL      string `json:"url"`
		MaxChars int    `json:"max_chars"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}

	parsedURL, err := url.Parse(parsed.URL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return &toolruntime.ToolResult{Content: "Error executing tool: url must be http or https", IsError: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.URL, nil)
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}
	defer resp.Body.Close()

	limit := parsed.MaxChars
	if limit <= 0 {
		limit = defaultMaxChars
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return &toolruntime.ToolResult{Content: "Error executing tool: " + err.Error(), IsError: true}, nil
	}

	truncated := false
	content := string(body)
	if len(content) > limit {
		content = content[:limit]
		truncated = true
	}

	payload, _ := json.Marshal(map[string]any{
		"url":         parsed.URL,
		"status":      resp.StatusCode,
		"content":     content,
		"truncated":   truncated,
		"content_type": resp.Header.Get("Content-Type"),
	})
	return &toolruntime.ToolResult{Content: string(payload)}, nil
}
