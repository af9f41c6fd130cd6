package models

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrAttachmentEmpty is returned by GetContentBytes when an attachment has
// neither stored nor inline content.
var ErrAttachmentEmpty = errors.New("models: attachment has no content")

// ContentResolver fetches the bytes for a stored attachment. FileStore
// implementations satisfy this interface.
type ContentResolver interface {
	Get(ctx context.Context, fileID, storagePath string) ([]byte, error)
}

// Attachment is a binary payload attached to a Message (spec.md §3).
//
// Exactly one of Content/ContentBase64 is populated before the attachment
// has been persisted; once FileID is set the attachment is considered
// stored and serialized forms omit the raw bytes.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`

	// Content holds inline raw bytes prior to storage.
	Content []byte `json:"-"`
	// ContentBase64 holds an inline base64 string prior to storage, used
	// when a caller supplies content as text rather than []byte.
	ContentBase64 string `json:"-"`

	ProcessedContent map[string]any `json:"processed_content,omitempty"`

	FileID         string    `json:"file_id,omitempty"`
	StoragePath    string    `json:"storage_path,omitempty"`
	StorageBackend string    `json:"storage_backend,omitempty"`
	CreatedAt      time.Time `json:"-"`
}

// Stored reports whether the attachment has been persisted to a FileStore.
func (a *Attachment) Stored() bool {
	return a.FileID != ""
}

// GetContentBytes resolves the attachment's bytes per spec.md §3's priority
// order: stored backend (if FileID is set and a resolver is supplied) ->
// inline bytes -> base64-decoded string -> UTF-8 bytes of the string.
func (a *Attachment) GetContentBytes(ctx context.Context, resolver ContentResolver) ([]byte, error) {
	if a.FileID != "" && resolver != nil {
		return resolver.Get(ctx, a.FileID, a.StoragePath)
	}
	if a.Content != nil {
		return a.Content, nil
	}
	if a.ContentBase64 != "" {
		if decoded, err := base64.StdEncoding.DecodeString(a.ContentBase64); err == nil {
			return decoded, nil
		}
		return []byte(a.ContentBase64), nil
	}
	return nil, ErrAttachmentEmpty
}

// attachmentWire is the on-the-wire shape for Attachment.model_dump()
// parity: Content is included only when the attachment has not been
// stored (FileID is empty), matching the "omit content iff file_id is set"
// invariant in spec.md §8.
type attachmentWire struct {
	Filename         string         `json:"filename"`
	MimeType         string         `json:"mime_type,omitempty"`
	Content          string         `json:"content,omitempty"`
	ProcessedContent map[string]any `json:"processed_content,omitempty"`
	FileID           string         `json:"file_id,omitempty"`
	StoragePath      string         `json:"storage_path,omitempty"`
	StorageBackend   string         `json:"storage_backend,omitempty"`
}

// MarshalJSON implements the model_dump() contract from spec.md §3/§8.
func (a Attachment) MarshalJSON() ([]byte, error) {
	wire := attachmentWire{
		Filename:         a.Filename,
		MimeType:         a.MimeType,
		ProcessedContent: a.ProcessedContent,
		FileID:           a.FileID,
		StoragePath:      a.StoragePath,
		StorageBackend:   a.StorageBackend,
	}
	if a.FileID == "" {
		switch {
		case a.ContentBase64 != "":
			wire.Content = a.ContentBase64
		case a.Content != nil:
			wire.Content = base64.StdEncoding.EncodeToString(a.Content)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reverses MarshalJSON, treating "content" as a base64 string
// per the backwards-compatibility rule in spec.md §3.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var wire attachmentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Attachment{
		Filename:         wire.Filename,
		MimeType:         wire.MimeType,
		ContentBase64:    wire.Content,
		ProcessedContent: wire.ProcessedContent,
		FileID:           wire.FileID,
		StoragePath:      wire.StoragePath,
		StorageBackend:   wire.StorageBackend,
	}
	return nil
}
