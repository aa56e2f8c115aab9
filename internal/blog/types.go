// Package blog renders host-based blog sites: it resolves the domain behind a
// request, loads the theme templates and injects formatted posts into them.
package blog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/backlinkoo/blog-engine/internal/storage"
)

// Domain is a connected blog domain with its meta settings.
type Domain struct {
	ID              string `json:"id"`
	Domain          string `json:"domain"`
	BlogEnabled     bool   `json:"blog_enabled"`
	SelectedTheme   string `json:"selected_theme"`
	ThemeName       string `json:"theme_name"`
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	MetaKeywords    string `json:"meta_keywords"`
	OGTitle         string `json:"og_title"`
	OGDescription   string `json:"og_description"`
	OGImage         string `json:"og_image"`
	Favicon         string `json:"favicon"`
	DNSVerified     bool   `json:"dns_verified"`
}

// MergeMetaTags fills empty meta fields from the domain's blog settings.
func (d *Domain) MergeMetaTags(tags map[string]string) {
	fill := func(dst *string, keys ...string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		for _, key := range keys {
			if v := strings.TrimSpace(tags[key]); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&d.MetaTitle, "meta_title")
	fill(&d.MetaDescription, "meta_description")
	fill(&d.MetaKeywords, "meta_keywords")
	fill(&d.OGTitle, "og_title")
	fill(&d.OGDescription, "og_description")
	fill(&d.OGImage, "og_image", "og_image_url")
}

// SiteTitle is the display title of the blog.
func (d Domain) SiteTitle() string {
	switch {
	case d.MetaTitle != "":
		return d.MetaTitle
	case d.ThemeName != "":
		return d.ThemeName
	default:
		return d.Domain
	}
}

// Theme returns the selected theme key or the provided default.
func (d Domain) Theme(fallback string) string {
	if t := strings.TrimSpace(d.SelectedTheme); t != "" {
		return t
	}
	return fallback
}

// Post is a generated blog post.
type Post struct {
	ID              string          `json:"id"`
	DomainID        string          `json:"domain_id"`
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	URL             string          `json:"url,omitempty"`
	Content         string          `json:"content"`
	ContentJSON     json.RawMessage `json:"content_json,omitempty"`
	OriginalContent string          `json:"original_content,omitempty"`
	Status          string          `json:"status"`
	PublishedAt     *time.Time      `json:"published_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
	QualityScore    int             `json:"quality_score"`
	Standardized    bool            `json:"standardized"`
}

// StatusPublished is the post status rendered on a site.
const StatusPublished = "published"

// ContentUpdate is the rewrite written back by standardization.
// OriginalContent is only stored when the row has none yet.
type ContentUpdate struct {
	Content         string
	OriginalContent string
	QualityScore    int
	Standardized    bool
	UpdatedAt       time.Time
}

// Store reads the domain and post rows needed to render a site.
type Store interface {
	DomainByHost(ctx context.Context, host string) (Domain, error)
	ListPublishedPosts(ctx context.Context, domainID string, limit, offset int) ([]Post, error)
	CountPublishedPosts(ctx context.Context, domainID string) (int, error)
	PostBySlug(ctx context.Context, domainID string, candidates []string) (Post, error)
}

// ThemeStore serves theme templates and assets.
type ThemeStore interface {
	GetObject(ctx context.Context, path string) (storage.Object, error)
}
