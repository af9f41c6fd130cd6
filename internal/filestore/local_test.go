package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.BasePath = dir
	cfg.MaxFileSize = 1024
	cfg.MaxStorageSize = 4096
	s, err := NewLocalStore(cfg)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s
}

func TestLocalStore_SaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.Save(ctx, []byte("hello world"), "greeting.txt", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if stored.MimeType != "text/plain; charset=utf-8" && stored.MimeType != "text/plain" {
		t.Fatalf("unexpected mime type %q", stored.MimeType)
	}
	if filepath.Base(filepath.Dir(stored.StoragePath)) != stored.ID[:2] {
		t.Fatalf("expected shard dir to be id prefix, got %q", stored.StoragePath)
	}

	got, err := s.Get(ctx, stored.ID, stored.StoragePath)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("unexpected content: %q", got)
	}

	// Get should also work by id alone, without a storage path hint.
	got, err = s.Get(ctx, stored.ID, "")
	if err != nil {
		t.Fatalf("Get by id: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("unexpected content via id-only lookup: %q", got)
	}
}

func TestLocalStore_SaveRejectsOversizedFile(t *testing.T) {
	s := newTestStore(t)
	big := make([]byte, 2048)
	_, err := s.Save(context.Background(), big, "big.txt", "text/plain")
	if err == nil {
		t.Fatalf("expected oversized save to fail")
	}
}

func TestLocalStore_SaveRejectsUnsupportedMime(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(context.Background(), []byte("x"), "thing.exe", "application/x-msdownload")
	if err == nil {
		t.Fatalf("expected unsupported mime type to be rejected")
	}
}

func TestLocalStore_StorageQuotaEnforced(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Save(ctx, []byte("0123456789abcdef"), "f.txt", "text/plain"); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	s.cfg.MaxStorageSize = 10
	if _, err := s.Save(ctx, []byte("more bytes"), "g.txt", "text/plain"); err == nil {
		t.Fatalf("expected storage quota to be enforced")
	}
}

func TestLocalStore_DeleteRemovesFileAndShardDir(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	stored, err := s.Save(ctx, []byte("bye"), "bye.txt", "text/plain")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, stored.ID, stored.StoragePath); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, stored.ID, stored.StoragePath); err == nil {
		t.Fatalf("expected Get after Delete to fail")
	}
	if _, err := os.Stat(filepath.Dir(stored.StoragePath)); !os.IsNotExist(err) {
		t.Fatalf("expected shard dir to be removed, stat err: %v", err)
	}
}

func TestLocalStore_ListFileIDsAndCleanupOrphaned(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	keep, err := s.Save(ctx, []byte("keep me"), "keep.txt", "text/plain")
	if err != nil {
		t.Fatalf("Save keep: %v", err)
	}
	orphan, err := s.Save(ctx, []byte("orphan me"), "orphan.txt", "text/plain")
	if err != nil {
		t.Fatalf("Save orphan: %v", err)
	}

	ids, err := s.ListFileIDs(ctx)
	if err != nil {
		t.Fatalf("ListFileIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d: %v", len(ids), ids)
	}

	lister := fakeAttachmentLister{referenced: map[string]struct{}{keep.ID: {}}}
	deleted, errs := CleanupOrphaned(ctx, s, lister)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 orphan deleted, got %d", deleted)
	}
	if _, err := s.Get(ctx, orphan.ID, orphan.StoragePath); err == nil {
		t.Fatalf("expected orphaned file to be gone")
	}
	if _, err := s.Get(ctx, keep.ID, keep.StoragePath); err != nil {
		t.Fatalf("expected referenced file to survive: %v", err)
	}
}

type fakeAttachmentLister struct {
	referenced map[string]struct{}
}

func (f fakeAttachmentLister) ListAllAttachmentFileIDs(context.Context) (map[string]struct{}, error) {
	return f.referenced, nil
}

func TestLocalStore_CheckHealth(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Save(ctx, []byte("abc"), "a.txt", "text/plain"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	health, err := s.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Healthy || health.FileCount != 1 || health.TotalSize != 3 {
		t.Fatalf("unexpected health: %+v", health)
	}
}
