package blobcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSCache is a filesystem-based implementation of Cache. Each key maps to
// a file under the base path, with key segments as subdirectories:
//
//	.peasant/
//	  blobs/
//	    queued/
//	      12
//	    result/
//	      12
type FSCache struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSCache creates a new filesystem-based cache rooted at basePath.
func NewFSCache(basePath string) (*FSCache, error) {
	blobDir := filepath.Join(basePath, "blobs")
	if err := os.MkdirAll(blobDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", blobDir, err)
	}
	return &FSCache{basePath: basePath}, nil
}

// Put stores data under key. The write goes through a temp file and rename
// so a crash never leaves a torn value.
func (c *FSCache) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.blobPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (c *FSCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// #nosec G304 - path is internal, constructed from a validated key
	data, err := os.ReadFile(c.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the value stored under key.
func (c *FSCache) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.blobPath(key)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Key: key}
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	os.Remove(filepath.Dir(path)) // best effort; fails while non-empty
	return nil
}

// List returns all keys beginning with the given prefix.
func (c *FSCache) List(ctx context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blobDir := filepath.Join(c.basePath, "blobs")
	var keys []string
	err := filepath.Walk(blobDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(blobDir, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk blobs: %w", err)
	}
	return keys, nil
}

// Close releases resources.
func (c *FSCache) Close() error {
	return nil
}

func (c *FSCache) blobPath(key string) string {
	return filepath.Join(c.basePath, "blobs", filepath.FromSlash(key))
}

// validateKey rejects keys that would escape the blob directory.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty cache key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid cache key %q", key)
		}
	}
	return nil
}
