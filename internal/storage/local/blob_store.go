// Package local implements a local filesystem blob store. Object metadata
// (content type, disposition, expiry) lives in a JSON sidecar next to each
// blob so the expiry sweeper works without a database.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xvc323/omnidocs/internal/crawler"
)

const metaSuffix = ".meta.json"

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

type sidecar struct {
	ContentType string    `json:"content_type,omitempty"`
	Disposition string    `json:"disposition,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a local filesystem-backed blob store, creating the base
// directory when missing and verifying it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up write probe: %w", err)
	}

	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// PutObject writes the blob and its metadata sidecar, returning a file://
// URI.
func (s *BlobStore) PutObject(_ context.Context, key string, data []byte, opts crawler.PutOptions) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	meta, err := json.Marshal(sidecar{
		ContentType: opts.ContentType,
		Disposition: opts.Disposition,
		ExpiresAt:   opts.ExpiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(fullPath+metaSuffix, meta, 0o600); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	return "file://" + fullPath, nil
}

// GetObject reads the blob and its sidecar metadata.
func (s *BlobStore) GetObject(_ context.Context, key string) ([]byte, crawler.ObjectInfo, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, crawler.ObjectInfo{}, err
	}
	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("get %s: %w", key, crawler.ErrObjectNotFound)
	}
	if err != nil {
		return nil, crawler.ObjectInfo{}, fmt.Errorf("read blob: %w", err)
	}
	return data, s.readInfo(key, fullPath), nil
}

// ListObjects walks the base directory and returns metadata for every blob
// under the prefix.
func (s *BlobStore) ListObjects(_ context.Context, prefix string) ([]crawler.ObjectInfo, error) {
	var out []crawler.ObjectInfo
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return err
		}
		rel, relErr := filepath.Rel(s.baseDir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		out = append(out, s.readInfo(key, path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk blobs: %w", err)
	}
	return out, nil
}

// DeleteObject removes the blob and its sidecar; missing keys are ignored.
func (s *BlobStore) DeleteObject(_ context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := os.Remove(fullPath + metaSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

func (s *BlobStore) readInfo(key, fullPath string) crawler.ObjectInfo {
	info := crawler.ObjectInfo{Key: key}
	meta, err := os.ReadFile(fullPath + metaSuffix)
	if err != nil {
		return info
	}
	var sc sidecar
	if json.Unmarshal(meta, &sc) == nil {
		info.ContentType = sc.ContentType
		info.ExpiresAt = sc.ExpiresAt
	}
	return info
}

// resolve joins the key under baseDir and rejects path traversal.
func (s *BlobStore) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	fullPath := filepath.Clean(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes base directory")
	}
	return fullPath, nil
}
