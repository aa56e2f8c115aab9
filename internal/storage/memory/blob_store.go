// Package memory keeps blog data and blobs in-memory for development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/backlinkoo/blog-engine/internal/storage"
)

// BlobStore stores objects in-memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]storage.Object
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]storage.Object)}
}

// GetObject returns a copy of the stored object.
func (s *BlobStore) GetObject(_ context.Context, path string) (storage.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	if !ok {
		return storage.Object{}, fmt.Errorf("get %s: %w", path, storage.ErrNotFound)
	}
	return storage.Object{Data: bytes.Clone(obj.Data), ContentType: obj.ContentType}, nil
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = storage.Object{Data: data, ContentType: contentType}
	return fmt.Sprintf("memory://%s", path), nil
}
