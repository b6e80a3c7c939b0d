// Package memory stores blob content in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xvc323/omnidocs/internal/crawler"
)

type object struct {
	data []byte
	info crawler.ObjectInfo
}

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]object)}
}

// PutObject persists the content and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, key string, data []byte, opts crawler.PutOptions) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{
		data: append([]byte(nil), data...),
		info: crawler.ObjectInfo{
			Key:         key,
			ContentType: opts.ContentType,
			ExpiresAt:   opts.ExpiresAt,
		},
	}
	return "memory://" + key, nil
}

// GetObject returns a copy of the stored content.
func (s *BlobStore) GetObject(_ context.Context, key string) ([]byte, crawler.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("get %s: %w", key, crawler.ErrObjectNotFound)
	}
	return append([]byte(nil), obj.data...), obj.info, nil
}

// ListObjects returns metadata for every object under the prefix.
func (s *BlobStore) ListObjects(_ context.Context, prefix string) ([]crawler.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.info)
		}
	}
	return out, nil
}

// DeleteObject removes the object; deleting a missing key is not an error.
func (s *BlobStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
