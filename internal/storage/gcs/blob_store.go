// Package gcs provides a BlobStore backed by Google Cloud Storage. Expiry
// is carried as object metadata so the sweeper can enforce it even when the
// bucket has no lifecycle rule.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/xvc323/omnidocs/internal/crawler"
)

const expiresMetaKey = "omnidocs-expires-at"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, key string, data []byte, opts crawler.PutOptions) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if opts.ContentType != "" {
		writer.ContentType = opts.ContentType
	}
	if opts.Disposition != "" {
		writer.ContentDisposition = opts.Disposition
	}
	if !opts.ExpiresAt.IsZero() {
		writer.Metadata = map[string]string{
			expiresMetaKey: opts.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// GetObject downloads the object and its metadata.
func (s *BlobStore) GetObject(ctx context.Context, key string) ([]byte, crawler.ObjectInfo, error) {
	obj := s.client.Bucket(s.bucket).Object(key)
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("get %s: %w", key, crawler.ErrObjectNotFound)
	}
	if err != nil {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("object attrs: %w", err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("read object: %w", err)
	}
	return data, infoFromAttrs(attrs), nil
}

// ListObjects returns metadata for every object under the prefix.
func (s *BlobStore) ListObjects(ctx context.Context, prefix string) ([]crawler.ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []crawler.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		out = append(out, infoFromAttrs(attrs))
	}
}

// DeleteObject removes the object; missing keys are ignored.
func (s *BlobStore) DeleteObject(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func infoFromAttrs(attrs *storage.ObjectAttrs) crawler.ObjectInfo {
	info := crawler.ObjectInfo{
		Key:         attrs.Name,
		ContentType: attrs.ContentType,
	}
	if raw, ok := attrs.Metadata[expiresMetaKey]; ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			info.ExpiresAt = ts
		}
	}
	return info
}
