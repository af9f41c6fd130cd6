package threadstore

import (
	"context"
	"testing"
	"time"

	"github.com/flores8/tyler/pkg/models"
)

func newThread(t *testing.T, id string, updated time.Time) *models.Thread {
	t.Helper()
	th := models.NewThread()
	th.ID = id
	th.UpdatedAt = updated
	th.Attributes = map[string]any{"env": "prod", "priority": 1}
	th.Source = map[string]any{"name": "slack", "channel": "C1"}
	return th
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	th := newThread(t, "t1", time.Now())

	if err := s.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "t1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v, got=%v", err, got)
	}

	miss, err := s.Get(ctx, "missing")
	if err != nil || miss != nil {
		t.Fatalf("expected nil, nil for missing thread, got %v, %v", miss, err)
	}

	ok, err := s.Delete(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	ok, err = s.Delete(ctx, "t1")
	if err != nil || ok {
		t.Fatalf("expected second delete to report false, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_ListRecentOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()
	_ = s.Save(ctx, newThread(t, "old", base.Add(-time.Hour)))
	_ = s.Save(ctx, newThread(t, "new", base))
	_ = s.Save(ctx, newThread(t, "newer", base.Add(time.Minute)))

	recent, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "newer" || recent[1].ID != "new" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}

func TestMemoryStore_FindByAttributes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Save(ctx, newThread(t, "a", time.Now()))
	other := newThread(t, "b", time.Now())
	other.Attributes = map[string]any{"env": "staging"}
	_ = s.Save(ctx, other)

	found, err := s.FindByAttributes(ctx, map[string]any{"env": "prod"})
	if err != nil {
		t.Fatalf("FindByAttributes: %v", err)
	}
	if len(found) != 1 || found[0].ID != "a" {
		t.Fatalf("unexpected result: %+v", found)
	}
}

func TestMemoryStore_FindBySource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Save(ctx, newThread(t, "a", time.Now()))
	other := newThread(t, "b", time.Now())
	other.Source = map[string]any{"name": "email"}
	_ = s.Save(ctx, other)

	found, err := s.FindBySource(ctx, "slack", map[string]any{"channel": "C1"})
	if err != nil {
		t.Fatalf("FindBySource: %v", err)
	}
	if len(found) != 1 || found[0].ID != "a" {
		t.Fatalf("unexpected result: %+v", found)
	}
}

func TestMemoryStore_ListAllAttachmentFileIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	th := newThread(t, "a", time.Now())
	msg := models.NewMessage(models.RoleUser, models.NewTextContent("hi"), time.Time{})
	msg.Attachments = []models.Attachment{{FileID: "f1"}, {Content: []byte("inline")}}
	th.Messages = append(th.Messages, msg)
	_ = s.Save(ctx, th)

	ids, err := s.ListAllAttachmentFileIDs(ctx)
	if err != nil {
		t.Fatalf("ListAllAttachmentFileIDs: %v", err)
	}
	if _, ok := ids["f1"]; !ok || len(ids) != 1 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
