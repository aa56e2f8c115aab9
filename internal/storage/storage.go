// Package storage defines the blob storage contract shared by the theme,
// asset and snapshot backends. Implementations live in the subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when an object or row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Object is a fetched blob.
type Object struct {
	Data        []byte
	ContentType string
}

// BlobStore reads and writes blobs by path.
type BlobStore interface {
	// GetObject returns the object stored at path or ErrNotFound.
	GetObject(ctx context.Context, path string) (Object, error)
	// PutObject writes the object and returns a URI that identifies it.
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}
