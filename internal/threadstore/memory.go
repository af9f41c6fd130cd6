package threadstore

import (
	"context"
	"sort"
	"sync"

	"github.com/flores8/tyler/pkg/models"
)

// MemoryStore is an in-memory ThreadStore for development and tests,
// grounded on the ref-counted RWMutex/sorted-view pattern used for the
// teacher's in-memory agent store.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*models.Thread
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*models.Thread)}
}

// Save upserts thread, replacing any copy stored earlier under the same id.
// Messages are not merged with the earlier copy's: the stored thread holds
// exactly the messages of the last saved one.
func (s *MemoryStore) Save(_ context.Context, thread *models.Thread) error {
	if thread == nil || thread.ID == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = thread
	return nil
}

// Get returns the thread for id, or (nil, nil) on a miss (spec.md §4.2).
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[id]
	if !ok {
		return nil, nil
	}
	return th, nil
}

// Delete cascade-removes the thread, reporting whether it existed.
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return false, nil
	}
	delete(s.threads, id)
	return true, nil
}

// List returns threads ordered by UpdatedAt desc, paginated.
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(sortedByUpdated(s.threads), limit, offset), nil
}

// ListRecent returns the limit most recently updated threads.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(sortedByUpdated(s.threads), limit, 0), nil
}

// FindByAttributes returns threads whose Attributes contain every key/value
// in attrs.
func (s *MemoryStore) FindByAttributes(_ context.Context, attrs map[string]any) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Thread
	for _, th := range sortedByUpdated(s.threads) {
		if attributesMatch(th.Attributes, attrs) {
			out = append(out, th)
		}
	}
	return out, nil
}

// FindBySource returns threads whose Source.name equals sourceName and
// whose remaining fields match properties.
func (s *MemoryStore) FindBySource(_ context.Context, sourceName string, properties map[string]any) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Thread
	for _, th := range sortedByUpdated(s.threads) {
		if th.Source == nil {
			continue
		}
		if name, _ := th.Source["name"].(string); name != sourceName {
			continue
		}
		if attributesMatch(th.Source, properties) {
			out = append(out, th)
		}
	}
	return out, nil
}

// ListAllAttachmentFileIDs scans every message in every thread for stored
// attachment file ids, for filestore.CleanupOrphaned.
func (s *MemoryStore) ListAllAttachmentFileIDs(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{})
	for _, th := range s.threads {
		for _, m := range th.Messages {
			for _, a := range m.Attachments {
				if a.FileID != "" {
					ids[a.FileID] = struct{}{}
				}
			}
		}
	}
	return ids, nil
}

func attributesMatch(have, want map[string]any) bool {
	for k, v := range want {
		hv, ok := have[k]
		if !ok {
			return false
		}
		if !equalJSONish(hv, v) {
			return false
		}
	}
	return true
}

// equalJSONish compares values the way JSON round-tripping would: numbers
// widen to float64, everything else uses ==.
func equalJSONish(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func sortedByUpdated(threads map[string]*models.Thread) []*models.Thread {
	out := make([]*models.Thread, 0, len(threads))
	for _, th := range threads {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func paginate(threads []*models.Thread, limit, offset int) []*models.Thread {
	if offset < 0 {
		offset = 0
	}
	if offset > len(threads) {
		offset = len(threads)
	}
	end := len(threads)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return threads[offset:end]
}
