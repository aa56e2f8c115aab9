// Package supabase reads objects from a public Supabase storage bucket.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/backlinkoo/blog-engine/internal/storage"
)

// ErrReadOnly is returned by PutObject: public buckets are never written.
var ErrReadOnly = errors.New("supabase: bucket is read-only")

// maxObjectSize caps a single download.
const maxObjectSize = 8 << 20

// Config points at a public bucket.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Bucket  string        `mapstructure:"bucket"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BlobStore fetches objects over HTTP.
type BlobStore struct {
	base   *url.URL
	bucket string
	client *http.Client
}

// New validates cfg and builds a store. A nil client gets a default one
// with cfg.Timeout.
func New(cfg Config, client *http.Client) (*BlobStore, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("supabase base url %q is invalid", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &BlobStore{base: base, bucket: cfg.Bucket, client: client}, nil
}

// ObjectURL is the public URL of an object.
func (s *BlobStore) ObjectURL(objectPath string) string {
	u := *s.base
	u.Path = path.Join(u.Path, "storage/v1/object/public", s.bucket, strings.TrimLeft(objectPath, "/"))
	return u.String()
}

// GetObject downloads an object. An .html object whose response is not
// served as text/html is treated as missing.
func (s *BlobStore) GetObject(ctx context.Context, objectPath string) (storage.Object, error) {
	if strings.TrimSpace(objectPath) == "" {
		return storage.Object{}, fmt.Errorf("path is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ObjectURL(objectPath), nil)
	if err != nil {
		return storage.Object{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("fetch object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		// Supabase answers 400 for objects that do not exist in some versions.
		return storage.Object{}, fmt.Errorf("get %s: %w", objectPath, storage.ErrNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		return storage.Object{}, fmt.Errorf("fetch object %s: unexpected status %d", objectPath, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasSuffix(strings.ToLower(objectPath), ".html") &&
		!strings.Contains(strings.ToLower(contentType), "text/html") {
		return storage.Object{}, fmt.Errorf("get %s: content type %q: %w", objectPath, contentType, storage.ErrNotFound)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
	if err != nil {
		return storage.Object{}, fmt.Errorf("read object: %w", err)
	}
	return storage.Object{Data: data, ContentType: contentType}, nil
}

// PutObject always fails with ErrReadOnly.
func (s *BlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrReadOnly
}
