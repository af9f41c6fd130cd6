package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// S3Store is an object-storage FileStore backend built with NewS3Store
// (spec.md §4.1 "[NEW]"); cmd/tyler's wiring always uses LocalStore.
// Keys mirror the local shard layout (<id[0:2]>/<id[2:]>.<ext>) so the two
// backends stay interchangeable for tooling that inspects StoragePath.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	cfg    Config
}

// S3Config adds the bucket/prefix/region needed on top of the shared Config.
type S3Config struct {
	Config
	Bucket string
	Prefix string
	Region string
}

// NewS3Store builds an S3Store from the default AWS credential chain.
func NewS3Store(ctx context.Context, scfg S3Config) (*S3Store, error) {
	if scfg.Bucket == "" {
		return nil, errors.New("filestore: s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(scfg.Region))
	if err != nil {
		return nil, fmt.Errorf("filestore: load aws config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: scfg.Bucket,
		prefix: scfg.Prefix,
		cfg:    scfg.Config,
	}, nil
}

func (s *S3Store) key(id, ext string) string {
	prefix := id
	rest := ""
	if len(id) > 2 {
		prefix, rest = id[:2], id[2:]
	}
	name := rest
	if ext != "" {
		name += "." + ext
	}
	k := prefix + "/" + name
	if s.prefix != "" {
		k = s.prefix + "/" + k
	}
	return k
}

// Save uploads content to S3 under a generated id, enforcing the same MIME
// and per-file size policy as LocalStore. The MaxStorageSize quota is not
// checked.
func (s *S3Store) Save(ctx context.Context, content []byte, filename, mimeHint string) (*StoredFile, error) {
	mimeType := resolveMime(mimeHint, filename, content)
	if len(s.cfg.AllowedMimeTypes) > 0 && !s.cfg.mimeAllowed(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
	size := int64(len(content))
	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	id := uuid.NewString()
	ext := extOf(filename)
	key := s.key(id, ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: s3 put object: %w", err)
	}

	return &StoredFile{
		ID:             id,
		Filename:       filename,
		MimeType:       mimeType,
		StoragePath:    key,
		StorageBackend: "s3",
		Size:           size,
	}, nil
}

// Get downloads bytes for storagePath, falling back to a HEAD-less ListObjects
// lookup by id when storagePath is unknown.
func (s *S3Store) Get(ctx context.Context, id, storagePath string) ([]byte, error) {
	key := storagePath
	if key == "" {
		var err error
		key, err = s.findKey(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
		}
		return nil, fmt.Errorf("filestore: s3 get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Delete removes the object for storagePath (or the id-derived key).
func (s *S3Store) Delete(ctx context.Context, id, storagePath string) error {
	key := storagePath
	if key == "" {
		var err error
		key, err = s.findKey(ctx, id)
		if err != nil {
			return err
		}
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("filestore: s3 delete object: %w", err)
	}
	return nil
}

func (s *S3Store) findKey(ctx context.Context, id string) (string, error) {
	if len(id) <= 2 {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	listPrefix += id[:2] + "/"

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	if err != nil {
		return "", fmt.Errorf("filestore: s3 list objects: %w", err)
	}
	rest := id[2:]
	for _, obj := range out.Contents {
		if obj.Key != nil && keyMatches(*obj.Key, rest) {
			return *obj.Key, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
}

func keyMatches(key, rest string) bool {
	base := key
	if i := lastSlash(key); i >= 0 {
		base = key[i+1:]
	}
	stem := base
	if i := lastDot(base); i >= 0 {
		stem = base[:i]
	}
	return stem == rest
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func extOf(filename string) string {
	if i := lastDot(filename); i >= 0 {
		return filename[i+1:]
	}
	return ""
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// BatchSave runs Save for each item, collecting per-item errors.
func (s *S3Store) BatchSave(ctx context.Context, items []SaveRequest) ([]*StoredFile, []error) {
	results := make([]*StoredFile, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		results[i], errs[i] = s.Save(ctx, item.Content, item.Filename, item.MimeHint)
	}
	return results, errs
}

// BatchDelete runs Delete for each id, collecting per-item errors.
func (s *S3Store) BatchDelete(ctx context.Context, ids []string) []error {
	errs := make([]error, len(ids))
	for i, id := range ids {
		errs[i] = s.Delete(ctx, id, "")
	}
	return errs
}

// StorageSize sums object sizes across the bucket (or prefix), paginating
// through ListObjectsV2.
func (s *S3Store) StorageSize(ctx context.Context) (int64, error) {
	var total int64
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return 0, fmt.Errorf("filestore: s3 list objects: %w", err)
		}
		for _, obj := range out.Contents {
			if obj.Size != nil {
				total += *obj.Size
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return total, nil
}

// FileCount counts objects across the bucket (or prefix).
func (s *S3Store) FileCount(ctx context.Context) (int, error) {
	ids, err := s.ListFileIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListFileIDs reconstructs ids from S3 keys, paginating through
// ListObjectsV2.
func (s *S3Store) ListFileIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("filestore: s3 list objects: %w", err)
		}
		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			key := *obj.Key
			if s.prefix != "" {
				key = key[len(s.prefix)+1:]
			}
			if i := lastSlash(key); i >= 0 {
				dir, base := key[:i], key[i+1:]
				stem := base
				if j := lastDot(base); j >= 0 {
					stem = base[:j]
				}
				ids = append(ids, dir+stem)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return ids, nil
}

// CheckHealth reports bucket reachability via a bounded ListObjectsV2 probe.
func (s *S3Store) CheckHealth(ctx context.Context) (Health, error) {
	_, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return Health{Healthy: false, Errors: []string{err.Error()}}, nil
	}
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
