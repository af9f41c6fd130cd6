// Package threadstore provides durable persistence for threads and their
// messages, queryable by id, attribute equality, and source subset match
// (spec.md §4.2).
package threadstore

import (
	"context"
	"errors"

	"github.com/flores8/tyler/pkg/models"
)

// ErrNotFound is returned by MemoryStore.Save for a nil thread or one with
// an empty id. Delete reports a missing thread as false rather than an
// error, and Get returns (nil, nil) on a miss, per spec.md §4.2's failure
// semantics.
var ErrNotFound = errors.New("threadstore: thread not found")

// Store is the ThreadStore contract from spec.md §4.2.
type Store interface {
	Save(ctx context.Context, thread *models.Thread) error
	Get(ctx context.Context, id string) (*models.Thread, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Thread, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Thread, error)
	FindByAttributes(ctx context.Context, attrs map[string]any) ([]*models.Thread, error)
	FindBySource(ctx context.Context, sourceName string, properties map[string]any) ([]*models.Thread, error)

	// ListAllAttachmentFileIDs supports filestore.CleanupOrphaned.
	ListAllAttachmentFileIDs(ctx context.Context) (map[string]struct{}, error)
}
