package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlinkoo/blog-engine/internal/storage"
)

func newTestStore(t *testing.T) *BlobStore {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/storage/v1/object/public/themes/minimal/index.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><!-- POSTS --></html>"))
		case "/storage/v1/object/public/themes/broken/index.html":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("<html></html>"))
		case "/storage/v1/object/public/themes/minimal/style.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte("body{}"))
		case "/storage/v1/object/public/themes/boom.html":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	store, err := New(Config{BaseURL: srv.URL + "/", Bucket: "themes"}, srv.Client())
	require.NoError(t, err)
	return store
}

func TestGetObject(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	obj, err := store.GetObject(ctx, "minimal/index.html")
	require.NoError(t, err)
	require.Contains(t, string(obj.Data), "<!-- POSTS -->")
	require.Contains(t, obj.ContentType, "text/html")

	obj, err = store.GetObject(ctx, "/minimal/style.css")
	require.NoError(t, err)
	require.Equal(t, "text/css", obj.ContentType)

	_, err = store.GetObject(ctx, "missing/index.html")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetObject(ctx, "broken/index.html")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetObject(ctx, "boom.html")
	require.ErrorContains(t, err, "unexpected status 502")
}

func TestPutObjectIsReadOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.PutObject(context.Background(), "x.html", "text/html", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "not a url", Bucket: "themes"}, nil)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "https://abc.supabase.co"}, nil)
	require.ErrorContains(t, err, "bucket")

	store, err := New(Config{BaseURL: "https://abc.supabase.co", Bucket: "themes"}, nil)
	require.NoError(t, err)
	require.Equal(t, "https://abc.supabase.co/storage/v1/object/public/themes/minimal/post.html",
		store.ObjectURL("minimal/post.html"))
}
