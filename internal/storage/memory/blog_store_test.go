package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backlinkoo/blog-engine/internal/blog"
	"github.com/backlinkoo/blog-engine/internal/storage"
	"github.com/backlinkoo/blog-engine/internal/verify"
)

func seededBlogStore() *BlogStore {
	s := NewBlogStore()
	s.AddDomain(blog.Domain{ID: "d1", Domain: "Example.com", BlogEnabled: true})
	at := func(day int) *time.Time {
		t := time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
		return &t
	}
	s.AddPost(blog.Post{ID: "p1", DomainID: "d1", Slug: "first", Status: blog.StatusPublished, PublishedAt: at(1)})
	s.AddPost(blog.Post{ID: "p2", DomainID: "d1", Slug: "Second", Status: blog.StatusPublished, PublishedAt: at(2)})
	s.AddPost(blog.Post{ID: "p3", DomainID: "d1", Slug: "draft", Status: "draft"})
	s.AddPost(blog.Post{ID: "p4", DomainID: "d2", Slug: "other", Status: blog.StatusPublished, PublishedAt: at(3)})
	return s
}

func TestBlogStoreListsPublishedNewestFirst(t *testing.T) {
	t.Parallel()

	s := seededBlogStore()
	ctx := context.Background()

	d, err := s.DomainByHost(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, "d1", d.ID)

	posts, err := s.ListPublishedPosts(ctx, "d1", 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, "p2", posts[0].ID)

	posts, err = s.ListPublishedPosts(ctx, "d1", 1, 1)
	require.NoError(t, err)
	require.Equal(t, "p1", posts[0].ID)

	posts, err = s.ListPublishedPosts(ctx, "d1", 10, 5)
	require.NoError(t, err)
	require.Empty(t, posts)

	posts, err = s.ListPublishedPosts(ctx, "d1", 1, -3)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "p2", posts[0].ID)

	n, err := s.CountPublishedPosts(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestBlogStorePostBySlugHonorsCandidateOrder(t *testing.T) {
	t.Parallel()

	s := seededBlogStore()
	ctx := context.Background()

	p, err := s.PostBySlug(ctx, "d1", []string{"missing", "second", "first"})
	require.NoError(t, err)
	require.Equal(t, "p2", p.ID)

	_, err = s.PostBySlug(ctx, "d1", []string{"draft"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.DomainByHost(ctx, "unknown.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBlogStoreUpdatePostContentKeepsOriginal(t *testing.T) {
	t.Parallel()

	s := seededBlogStore()
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpdatePostContent(ctx, "p1", blog.ContentUpdate{
		Content: "<p>v2</p>", OriginalContent: "v1", QualityScore: 70, Standardized: true, UpdatedAt: now,
	}))
	require.NoError(t, s.UpdatePostContent(ctx, "p1", blog.ContentUpdate{
		Content: "<p>v3</p>", OriginalContent: "v2", QualityScore: 80, Standardized: true, UpdatedAt: now,
	}))

	p, err := s.PostByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "<p>v3</p>", p.Content)
	require.Equal(t, "v1", p.OriginalContent)
	require.Equal(t, 80, p.QualityScore)

	all, err := s.ListPostsForDomain(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.ErrorIs(t, s.UpdatePostContent(ctx, "nope", blog.ContentUpdate{}), storage.ErrNotFound)
}

func TestVerificationStoreCopies(t *testing.T) {
	t.Parallel()

	s := NewVerificationStore()
	require.NoError(t, s.Save(context.Background(), verify.Result{SourceURL: "https://a.com", Score: 50}))

	got := s.Results()
	require.Len(t, got, 1)
	got[0].Score = 0
	require.Equal(t, 50, s.Results()[0].Score)
}
