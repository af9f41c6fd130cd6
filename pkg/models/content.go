package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentPart is one typed chunk of a multimodal message body.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps the url carried by an "image_url" content part.
type ImageURL struct {
	URL string `json:"url"`
}

// Content is the union required by the chat completion wire format: either a
// plain string or an ordered list of typed parts. Exactly one of Text or
// Parts is populated for any non-empty Content.
type Content struct {
	Text  *string
	Parts []ContentPart
}

// NewTextContent returns Content wrapping a plain string.
func NewTextContent(text string) Content {
	return Content{Text: &text}
}

// NewPartsContent returns Content wrapping multimodal parts.
func NewPartsContent(parts []ContentPart) Content {
	return Content{Parts: parts}
}

// IsText reports whether the content is a plain string (as opposed to
// multimodal parts or entirely empty).
func (c Content) IsText() bool {
	return c.Text != nil
}

// IsEmpty reports whether no content was set at all.
func (c Content) IsEmpty() bool {
	return c.Text == nil && c.Parts == nil
}

// String returns the plain-text form, or "" for multimodal/empty content.
func (c Content) String() string {
	if c.Text != nil {
		return *c.Text
	}
	return ""
}

// MarshalJSON implements the text-or-parts union encoding.
func (c Content) MarshalJSON() ([]byte, error) {
	switch {
	case c.Text != nil:
		return json.Marshal(*c.Text)
	case c.Parts != nil:
		return json.Marshal(c.Parts)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements the text-or-parts union decoding.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		*c = Content{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("content: decode text: %w", err)
		}
		*c = Content{Text: &s}
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content: decode parts: %w", err)
	}
	*c = Content{Parts: parts}
	return nil
}
