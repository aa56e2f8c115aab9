package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlinkoo/blog-engine/internal/storage"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "themes/minimal/index.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://themes/minimal/index.html", uri)

	obj, err := store.GetObject(context.Background(), "themes/minimal/index.html")
	require.NoError(t, err)
	require.Equal(t, "text/html", obj.ContentType)
	require.Equal(t, "content", string(obj.Data))

	obj.Data[0] = 'C'
	again, err := store.GetObject(context.Background(), "themes/minimal/index.html")
	require.NoError(t, err)
	require.Equal(t, "content", string(again.Data))
}

func TestBlobStoreMissingObject(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "nope")
	require.True(t, errors.Is(err, storage.ErrNotFound))
}
