package filestore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStore is the default FileStore backend: a sharded local filesystem
// tree at <base>/<id[0:2]>/<id[2:]>.<ext> (spec.md §4.1, §6). No sidecar
// metadata is ever written; StoredFile is the only record of a save.
type LocalStore struct {
	cfg Config
	mu  sync.Mutex
}

// NewLocalStore creates a LocalStore rooted at cfg.BasePath, creating the
// directory if needed.
func NewLocalStore(cfg Config) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create base path: %w", err)
	}
	return &LocalStore{cfg: cfg}, nil
}

func (s *LocalStore) shardPath(id, ext string) string {
	prefix := id
	rest := ""
	if len(id) > 2 {
		prefix, rest = id[:2], id[2:]
	}
	name := rest
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(s.cfg.BasePath, prefix, name)
}

func resolveMime(hint, filename string, content []byte) string {
	if hint != "" {
		return hint
	}
	if ext := filepath.Ext(filename); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return stripMimeParams(t)
		}
	}
	return stripMimeParams(http.DetectContentType(content))
}

func stripMimeParams(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		return strings.TrimSpace(t[:i])
	}
	return t
}

// Save persists content under a generated UUID, enforcing MIME and size
// policy (spec.md §4.1).
func (s *LocalStore) Save(ctx context.Context, content []byte, filename, mimeHint string) (*StoredFile, error) {
	mimeType := resolveMime(mimeHint, filename, content)
	if len(s.cfg.AllowedMimeTypes) > 0 && !s.cfg.mimeAllowed(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
	size := int64(len(content))
	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxStorageSize > 0 {
		current, err := s.storageSizeLocked()
		if err != nil {
			return nil, err
		}
		if current+size > s.cfg.MaxStorageSize {
			return nil, fmt.Errorf("%w: %d + %d > %d", ErrStorageFull, current, size, s.cfg.MaxStorageSize)
		}
	}

	id := uuid.NewString()
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	path := s.shardPath(id, ext)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create shard dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("filestore: write file: %w", err)
	}

	return &StoredFile{
		ID:             id,
		Filename:       filename,
		MimeType:       mimeType,
		StoragePath:    path,
		StorageBackend: "local",
		CreatedAt:      time.Now().UTC(),
		Size:           size,
	}, nil
}

// Get resolves bytes preferring storagePath, falling back to the sharded
// path derived from id.
func (s *LocalStore) Get(_ context.Context, id, storagePath string) ([]byte, error) {
	paths := []string{}
	if storagePath != "" {
		paths = append(paths, storagePath)
	}
	paths = append(paths, s.globCandidates(id)...)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
}

func (s *LocalStore) globCandidates(id string) []string {
	if len(id) <= 2 {
		return nil
	}
	dir := filepath.Join(s.cfg.BasePath, id[:2])
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	rest := id[2:]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == rest || strings.TrimSuffix(name, filepath.Ext(name)) == rest {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

// Delete removes the stored file, best-effort removing the now-empty shard
// directory.
func (s *LocalStore) Delete(_ context.Context, id, storagePath string) error {
	paths := []string{}
	if storagePath != "" {
		paths = append(paths, storagePath)
	}
	paths = append(paths, s.globCandidates(id)...)

	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			_ = os.Remove(filepath.Dir(p)) // best-effort; fails silently if not empty
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrFileNotFound, id)
}

// BatchSave runs Save for each item, collecting per-item errors.
func (s *LocalStore) BatchSave(ctx context.Context, items []SaveRequest) ([]*StoredFile, []error) {
	results := make([]*StoredFile, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		results[i], errs[i] = s.Save(ctx, item.Content, item.Filename, item.MimeHint)
	}
	return results, errs
}

// BatchDelete runs Delete for each id, collecting per-item errors.
func (s *LocalStore) BatchDelete(ctx context.Context, ids []string) []error {
	errs := make([]error, len(ids))
	for i, id := range ids {
		errs[i] = s.Delete(ctx, id, "")
	}
	return errs
}

// StorageSize walks the tree summing file sizes (no sidecar index exists).
func (s *LocalStore) StorageSize(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storageSizeLocked()
}

func (s *LocalStore) storageSizeLocked() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.cfg.BasePath, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// FileCount walks the tree counting stored files.
func (s *LocalStore) FileCount(context.Context) (int, error) {
	count := 0
	err := filepath.WalkDir(s.cfg.BasePath, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}

// ListFileIDs reconstructs stored ids from the shard tree layout, used by
// CleanupOrphaned.
func (s *LocalStore) ListFileIDs(context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(s.cfg.BasePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.cfg.BasePath, path)
		if relErr != nil {
			return nil
		}
		parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
		if len(parts) != 2 {
			return nil
		}
		stem := strings.TrimSuffix(parts[1], filepath.Ext(parts[1]))
		ids = append(ids, parts[0]+stem)
		return nil
	})
	return ids, err
}

// CheckHealth reports storage size, file count, and any scan errors.
func (s *LocalStore) CheckHealth(ctx context.Context) (Health, error) {
	size, err := s.StorageSize(ctx)
	if err != nil {
		return Health{Healthy: false, Errors: []string{err.Error()}}, nil
	}
	count, err := s.FileCount(ctx)
	if err != nil {
		return Health{Healthy: false, Errors: []string{err.Error()}}, nil
	}
	return Health{Healthy: true, TotalSize: size, FileCount: count}, nil
}
