package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/backlinkoo/blog-engine/internal/blog"
	"github.com/backlinkoo/blog-engine/internal/storage"
)

// BlogStore holds domains and posts in memory.
type BlogStore struct {
	mu      sync.RWMutex
	domains map[string]blog.Domain
	posts   map[string]blog.Post
}

// NewBlogStore constructs an empty BlogStore.
func NewBlogStore() *BlogStore {
	return &BlogStore{
		domains: make(map[string]blog.Domain),
		posts:   make(map[string]blog.Post),
	}
}

// AddDomain inserts or replaces a domain.
func (s *BlogStore) AddDomain(d blog.Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[d.ID] = d
}

// AddPost inserts or replaces a post.
func (s *BlogStore) AddPost(p blog.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

// DomainByHost finds a domain by its lower-cased host name.
func (s *BlogStore) DomainByHost(_ context.Context, host string) (blog.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	host = strings.ToLower(host)
	for _, d := range s.domains {
		if strings.ToLower(d.Domain) == host {
			return d, nil
		}
	}
	return blog.Domain{}, fmt.Errorf("domain %s: %w", host, storage.ErrNotFound)
}

// ListPublishedPosts returns one page of published posts, newest first.
func (s *BlogStore) ListPublishedPosts(_ context.Context, domainID string, limit, offset int) ([]blog.Post, error) {
	posts := s.published(domainID)
	offset = max(offset, 0)
	if offset >= len(posts) {
		return nil, nil
	}
	end := len(posts)
	if limit > 0 {
		end = min(end, offset+limit)
	}
	return posts[offset:end], nil
}

// CountPublishedPosts counts the published posts of a domain.
func (s *BlogStore) CountPublishedPosts(_ context.Context, domainID string) (int, error) {
	return len(s.published(domainID)), nil
}

// PostBySlug returns the published post matching the first candidate slug
// that exists, compared case-insensitively.
func (s *BlogStore) PostBySlug(_ context.Context, domainID string, candidates []string) (blog.Post, error) {
	posts := s.published(domainID)
	for _, c := range candidates {
		for _, p := range posts {
			if strings.EqualFold(p.Slug, c) {
				return p, nil
			}
		}
	}
	return blog.Post{}, fmt.Errorf("post %v: %w", candidates, storage.ErrNotFound)
}

// PostByID returns a post regardless of status.
func (s *BlogStore) PostByID(_ context.Context, id string) (blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return blog.Post{}, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

// ListPostsForDomain returns every post of a domain ordered by ID.
func (s *BlogStore) ListPostsForDomain(_ context.Context, domainID string) ([]blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []blog.Post
	for _, p := range s.posts {
		if p.DomainID == domainID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b blog.Post) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// UpdatePostContent applies a standardization rewrite.
func (s *BlogStore) UpdatePostContent(_ context.Context, id string, u blog.ContentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	if p.OriginalContent == "" {
		p.OriginalContent = u.OriginalContent
	}
	p.Content = u.Content
	p.QualityScore = u.QualityScore
	p.Standardized = u.Standardized
	p.UpdatedAt = u.UpdatedAt
	s.posts[id] = p
	return nil
}

func (s *BlogStore) published(domainID string) []blog.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []blog.Post
	for _, p := range s.posts {
		if p.DomainID == domainID && p.Status == blog.StatusPublished {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b blog.Post) int {
		if c := comparePublished(b, a); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func comparePublished(a, b blog.Post) int {
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return 0
	case a.PublishedAt == nil:
		return -1
	case b.PublishedAt == nil:
		return 1
	default:
		return a.PublishedAt.Compare(*b.PublishedAt)
	}
}
