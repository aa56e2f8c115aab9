package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/backlinkoo/blog-engine/internal/blog"
	"github.com/backlinkoo/blog-engine/internal/storage"
)

const domainColumns = `d.id::text, d.domain, d.blog_enabled,
	coalesce(d.selected_theme, ''), coalesce(d.theme_name, ''),
	coalesce(d.meta_title, ''), coalesce(d.meta_description, ''), coalesce(d.meta_keywords, ''),
	coalesce(d.og_title, ''), coalesce(d.og_description, ''), coalesce(d.og_image, ''),
	coalesce(d.favicon, ''), coalesce(d.dns_verified, true),
	coalesce(s.meta_tags, '{}'::jsonb)`

const postColumns = `id::text, domain_id::text, title, slug, coalesce(url, ''),
	content, content_json, coalesce(original_content, ''), status,
	published_at, updated_at, quality_score, standardized`

// BlogStore reads domains and posts and writes standardized content.
type BlogStore struct {
	pool pool
}

// NewBlogStore wraps a pool.
func NewBlogStore(p pool) (*BlogStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &BlogStore{pool: p}, nil
}

// DomainByHost loads a domain with its blog settings merged in.
func (s *BlogStore) DomainByHost(ctx context.Context, host string) (blog.Domain, error) {
	query := `SELECT ` + domainColumns + `
FROM domains d
LEFT JOIN domain_blog_settings s ON s.domain_id = d.id
WHERE lower(d.domain) = lower($1)
LIMIT 1`

	var (
		d        blog.Domain
		metaTags []byte
	)
	err := s.pool.QueryRow(ctx, query, host).Scan(
		&d.ID, &d.Domain, &d.BlogEnabled,
		&d.SelectedTheme, &d.ThemeName,
		&d.MetaTitle, &d.MetaDescription, &d.MetaKeywords,
		&d.OGTitle, &d.OGDescription, &d.OGImage,
		&d.Favicon, &d.DNSVerified,
		&metaTags,
	)
	if err != nil {
		return blog.Domain{}, notFound(err, "select domain")
	}
	tags, err := decodeMetaTags(metaTags)
	if err != nil {
		return blog.Domain{}, err
	}
	d.MergeMetaTags(tags)
	return d, nil
}

// ListPublishedPosts returns one page of published posts, newest first.
func (s *BlogStore) ListPublishedPosts(ctx context.Context, domainID string, limit, offset int) ([]blog.Post, error) {
	query := `SELECT ` + postColumns + `
FROM automation_posts
WHERE domain_id = $1 AND status = $2
ORDER BY published_at DESC NULLS LAST, id
LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, domainID, blog.StatusPublished, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return collectPosts(rows)
}

// CountPublishedPosts counts the published posts of a domain.
func (s *BlogStore) CountPublishedPosts(ctx context.Context, domainID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM automation_posts WHERE domain_id = $1 AND status = $2`,
		domainID, blog.StatusPublished,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// PostBySlug returns the published post matching the earliest candidate.
func (s *BlogStore) PostBySlug(ctx context.Context, domainID string, candidates []string) (blog.Post, error) {
	lowered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lowered = append(lowered, strings.ToLower(c))
	}
	query := `SELECT ` + postColumns + `
FROM automation_posts
WHERE domain_id = $1 AND status = $2 AND lower(slug) = ANY($3)
ORDER BY array_position($3, lower(slug))
LIMIT 1`

	p, err := scanPost(s.pool.QueryRow(ctx, query, domainID, blog.StatusPublished, lowered))
	if err != nil {
		return blog.Post{}, notFound(err, "select post by slug")
	}
	return p, nil
}

// PostByID returns a post regardless of status.
func (s *BlogStore) PostByID(ctx context.Context, id string) (blog.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM automation_posts WHERE id = $1`, id))
	if err != nil {
		return blog.Post{}, notFound(err, "select post")
	}
	return p, nil
}

// ListPostsForDomain returns every post of a domain.
func (s *BlogStore) ListPostsForDomain(ctx context.Context, domainID string) ([]blog.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM automation_posts WHERE domain_id = $1 ORDER BY id`, domainID)
	if err != nil {
		return nil, fmt.Errorf("list domain posts: %w", err)
	}
	return collectPosts(rows)
}

// UpdatePostContent writes a standardization rewrite. original_content is
// only filled when it is still empty.
func (s *BlogStore) UpdatePostContent(ctx context.Context, id string, u blog.ContentUpdate) error {
	query := `UPDATE automation_posts SET
	content = $2,
	original_content = coalesce(nullif(original_content, ''), $3),
	quality_score = $4,
	standardized = $5,
	updated_at = $6
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, u.Content, u.OriginalContent, u.QualityScore, u.Standardized, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update post content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update post %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanPost(row pgx.Row) (blog.Post, error) {
	var (
		p           blog.Post
		contentJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.DomainID, &p.Title, &p.Slug, &p.URL,
		&p.Content, &contentJSON, &p.OriginalContent, &p.Status,
		&p.PublishedAt, &p.UpdatedAt, &p.QualityScore, &p.Standardized,
	)
	if err != nil {
		return blog.Post{}, err
	}
	if len(contentJSON) > 0 {
		p.ContentJSON = json.RawMessage(contentJSON)
	}
	return p, nil
}

func collectPosts(rows pgx.Rows) ([]blog.Post, error) {
	defer rows.Close()
	var posts []blog.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func decodeMetaTags(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode meta tags: %w", err)
	}
	tags := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}
	return tags, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
