package blog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/formatter"
	"github.com/backlinkoo/blog-engine/internal/metrics"
	"github.com/backlinkoo/blog-engine/internal/storage"
)

const (
	cacheControlPage  = "public, max-age=60, stale-while-revalidate=300"
	cacheControlAsset = "public, max-age=3600, s-maxage=3600"
	contentTypeHTML   = "text/html; charset=utf-8"
	publishedLayout   = "January 2, 2006"
)

var assetRE = regexp.MustCompile(`(?i)\.(css|js|png|jpe?g|svg|webp|ico|woff2?|ttf|eot|gif|mp4|webm)$`)

var staticPages = map[string]string{
	"privacy-policy":       "Privacy Policy",
	"terms-and-conditions": "Terms and Conditions",
	"contact-us":           "Contact Us",
	"index":                "",
}

// Config controls how a Site resolves hosts and themes.
type Config struct {
	// PrimaryHosts are the marketing site hosts; requests for them are
	// redirected to MainSiteURL.
	PrimaryHosts []string
	MainSiteURL  string
	ProxySecret  string

	// ThemePrefix is prepended to theme object paths in the ThemeStore.
	ThemePrefix  string
	DefaultTheme string

	// PostTheme is the theme whose post.html is tried after the domain's own.
	PostTheme string
}

// Site serves host-based blogs.
type Site struct {
	store     Store
	themes    ThemeStore
	formatter Formatter
	cfg       Config
	primary   map[string]struct{}
	logger    *zap.Logger
}

// NewSite constructs a Site.
func NewSite(store Store, themes ThemeStore, f Formatter, cfg Config, logger *zap.Logger) *Site {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = "minimal"
	}
	if cfg.PostTheme == "" {
		cfg.PostTheme = "HTML"
	}
	primary := make(map[string]struct{}, len(cfg.PrimaryHosts))
	for _, h := range cfg.PrimaryHosts {
		if h = normalizeHost(h); h != "" {
			primary[h] = struct{}{}
		}
	}
	return &Site{
		store:     store,
		themes:    themes,
		formatter: f,
		cfg:       cfg,
		primary:   primary,
		logger:    logger,
	}
}

// ServeHTTP renders the blog page for the request's host and path.
func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.Header().Set("Cache-Control", cacheControlPage)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	ctx := r.Context()
	host := ResolveHost(r, s.cfg.ProxySecret)
	reqPath := ResolvePath(r)
	logger := s.logger.With(zap.String("host", host), zap.String("path", reqPath))

	if target, ok := CanonicalRedirect(reqPath); ok {
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		s.redirect(w, http.StatusMovedPermanently, schemeOf(r)+"://"+r.Host+target)
		return
	}
	if s.serveAsset(ctx, w, reqPath) {
		return
	}
	reqPath = NormalizeSitePath(reqPath, host)

	if _, ok := s.primary[host]; ok {
		s.redirect(w, http.StatusFound, strings.TrimRight(s.mainSite(host), "/")+reqPath)
		return
	}

	domain, err := s.store.DomainByHost(ctx, host)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.page(w, http.StatusOK, "info", InfoPage(http.StatusOK,
			"<h1>"+html.EscapeString(host)+"</h1><p>Site is connected, but no domain record exists yet.</p>"))
		return
	case err != nil:
		logger.Error("domain lookup failed", zap.Error(err))
		s.serverError(w, "Domain lookup failed.")
		return
	}
	if !domain.DNSVerified {
		s.page(w, http.StatusOK, "info", InfoPage(http.StatusOK,
			"<h1>"+html.EscapeString(host)+"</h1><p>DNS not verified yet. Please complete DNS setup for this domain.</p>"))
		return
	}
	if !domain.BlogEnabled {
		s.page(w, http.StatusOK, "info", InfoPage(http.StatusOK,
			"<h1>"+html.EscapeString(host)+"</h1><p>The blog is not enabled for this domain.</p>"))
		return
	}

	theme := domain.Theme(s.cfg.DefaultTheme)
	if s.serveStatic(ctx, w, domain, theme, reqPath) {
		return
	}
	if listing, ok := ParseListingPage(reqPath, r.URL.Query()); ok {
		s.serveListing(ctx, w, logger, domain, theme, listing)
		return
	}
	s.servePost(ctx, w, logger, domain, theme, reqPath)
}

func (s *Site) serveAsset(ctx context.Context, w http.ResponseWriter, reqPath string) bool {
	parts := splitPath(reqPath)
	if len(parts) < 3 || !strings.EqualFold(parts[0], "themes") {
		return false
	}
	filename := strings.Join(parts[2:], "/")
	if !assetRE.MatchString(filename) {
		return false
	}
	for _, key := range ThemeKeyVariants(parts[1]) {
		obj, err := s.themes.GetObject(ctx, themeObjectPath(s.cfg.ThemePrefix, key, filename))
		if err != nil {
			continue
		}
		ctype := obj.ContentType
		if ctype == "" {
			ctype = mime.TypeByExtension(path.Ext(filename))
		}
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", cacheControlAsset)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(obj.Data)
		metrics.ObservePage("asset")
		return true
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControlPage)
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
	metrics.ObservePage("not_found")
	return true
}

// serveStatic renders /privacy-policy style pages and their theme-scoped
// /themes/<theme>/<page> forms.
func (s *Site) serveStatic(ctx context.Context, w http.ResponseWriter, d Domain, theme, reqPath string) bool {
	parts := splitPath(reqPath)
	var leaf string
	switch {
	case len(parts) == 1:
		leaf = strings.ToLower(parts[0])
	case len(parts) == 3 && parts[0] == "themes":
		theme, leaf = parts[1], strings.ToLower(parts[2])
	default:
		return false
	}
	heading, ok := staticPages[leaf]
	if !ok {
		return false
	}
	if tpl, found := s.template(ctx, theme, leaf+".html"); found {
		s.page(w, http.StatusOK, "static", ReplaceTokens(tpl, metaTokens(d, "/"+leaf)))
		return true
	}
	if heading == "" {
		return false
	}
	body := fmt.Sprintf("<h1>%s</h1><p>%s is operated by %s. Please reach out through the contact details on this site.</p>",
		html.EscapeString(heading), html.EscapeString(d.SiteTitle()), html.EscapeString(d.Domain))
	s.page(w, http.StatusOK, "static", InfoPage(http.StatusOK, body))
	return true
}

func (s *Site) serveListing(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, d Domain, theme string, l Listing) {
	size := PageSize(theme)
	total, err := s.store.CountPublishedPosts(ctx, d.ID)
	if err != nil {
		logger.Error("count posts failed", zap.Error(err))
		s.serverError(w, "Could not load posts.")
		return
	}
	// Pages past the end render the last page; the offset would overflow otherwise.
	totalPages := max(1, (total+size-1)/size)
	l.Page = min(l.Page, totalPages)
	posts, err := s.store.ListPublishedPosts(ctx, d.ID, size, (l.Page-1)*size)
	if err != nil {
		logger.Error("list posts failed", zap.Error(err))
		s.serverError(w, "Could not load posts.")
		return
	}

	items := make([]Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, s.listItem(p, l.Base))
	}
	list := RenderItems(items)
	pagination := RenderPagination(l.Page, totalPages, l.Base)

	tpl, found := s.template(ctx, theme, "index.html")
	if !found {
		s.page(w, http.StatusOK, "listing", fallbackListing(d.SiteTitle(), list, pagination))
		return
	}
	out := withPostsStylesheet(ReplaceTokens(tpl, metaTokens(d, l.Canonical())))
	out = Inject(out, MarkerPosts, list)
	out = Inject(out, MarkerPagination, pagination)
	s.page(w, http.StatusOK, "listing", out)
}

func (s *Site) listItem(p Post, base string) Item {
	slug := p.Slug
	href := "/" + escapeSlug(slug)
	if base == "/posts" {
		if _, inner, ok := strings.Cut(slug, "/"); ok {
			slug = inner
		}
		href = "/posts/" + escapeSlug(slug)
	}
	item := Item{Title: p.Title, Href: href}
	if item.Title == "" {
		item.Title = slug
	}
	if p.PublishedAt != nil {
		item.Published = p.PublishedAt.Format(publishedLayout)
	}
	item.Excerpt = formatter.Excerpt(ContentToHTML(s.formatter, p), formatter.DefaultExcerptLength)
	return item
}

func (s *Site) servePost(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, d Domain, theme, reqPath string) {
	pp := ParsePostPath(reqPath, theme)
	candidates := SlugCandidates(pp.Theme, pp.Slug)
	post, err := s.store.PostBySlug(ctx, d.ID, candidates)
	switch {
	case errors.Is(err, storage.ErrNotFound) || (err == nil && len(candidates) == 0):
		var tried strings.Builder
		for _, c := range candidates {
			tried.WriteString("<li>" + html.EscapeString(c) + "</li>")
		}
		requested := pp.Slug
		if requested == "" {
			requested = reqPath
		}
		s.page(w, http.StatusNotFound, "not_found", InfoPage(http.StatusNotFound,
			"<h1>404</h1><p>No post for slug: "+html.EscapeString(requested)+"</p><ul>"+tried.String()+"</ul>"))
		return
	case err != nil:
		logger.Error("post lookup failed", zap.Error(err))
		s.serverError(w, "Could not load the post.")
		return
	}

	effective := theme
	if pp.Theme != "" {
		effective = pp.Theme
	}
	canonical := "/" + escapeSlug(pp.Slug)
	if pp.UnderDir {
		canonical = "/posts/" + escapeSlug(pp.Slug)
	}
	tokens := metaTokens(d, canonical)
	tokens["TITLE"] = html.EscapeString(post.Title)
	tokens["POST_TITLE"] = html.EscapeString(post.Title)
	tokens["PUBLISHED"] = "Draft"
	if post.PublishedAt != nil {
		tokens["PUBLISHED"] = post.PublishedAt.Format(publishedLayout)
	}
	content := ContentToHTML(s.formatter, post)

	for _, t := range []string{effective, s.cfg.PostTheme} {
		tpl, found := s.template(ctx, t, "post.html")
		if !found {
			continue
		}
		if out, ok := injectPostContent(ReplaceTokens(tpl, tokens), content); ok {
			s.page(w, http.StatusOK, "post", out)
			return
		}
	}
	logger.Warn("post template missing", zap.String("theme", effective))
	s.page(w, http.StatusInternalServerError, "error", InfoPage(http.StatusInternalServerError,
		"<h1>Template missing</h1><p>themes/"+html.EscapeString(s.cfg.PostTheme)+"/post.html not found in storage.</p>"))
}

// template loads an HTML template for any storage variant of the theme key.
func (s *Site) template(ctx context.Context, theme, name string) (string, bool) {
	for _, key := range ThemeKeyVariants(theme) {
		obj, err := s.themes.GetObject(ctx, themeObjectPath(s.cfg.ThemePrefix, key, name))
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Debug("theme template fetch failed", zap.String("theme", key), zap.String("name", name), zap.Error(err))
			}
			continue
		}
		if obj.ContentType != "" && !strings.Contains(strings.ToLower(obj.ContentType), "text/html") {
			continue
		}
		return string(obj.Data), true
	}
	return "", false
}

func (s *Site) mainSite(host string) string {
	if s.cfg.MainSiteURL != "" {
		return s.cfg.MainSiteURL
	}
	return "https://" + host
}

func (s *Site) page(w http.ResponseWriter, status int, outcome, body string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", cacheControlPage)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
	metrics.ObservePage(outcome)
}

func (s *Site) serverError(w http.ResponseWriter, msg string) {
	s.page(w, http.StatusInternalServerError, "error", InfoPage(http.StatusInternalServerError,
		"<h1>Error</h1><p>"+html.EscapeString(msg)+"</p>"))
}

func (s *Site) redirect(w http.ResponseWriter, status int, location string) {
	w.Header().Set("Location", location)
	w.Header().Set("Cache-Control", cacheControlPage)
	w.WriteHeader(status)
	metrics.ObservePage("redirect")
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func schemeOf(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "https"
}

func escapeSlug(slug string) string {
	segments := strings.Split(slug, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// metaTokens builds the escaped template tokens shared by every page.
func metaTokens(d Domain, canonical string) map[string]string {
	title := html.EscapeString(d.SiteTitle())
	return map[string]string{
		"SITE_TITLE":     title,
		"TITLE":          title,
		"DESCRIPTION":    html.EscapeString(d.MetaDescription),
		"KEYWORDS":       html.EscapeString(d.MetaKeywords),
		"OG_TITLE":       html.EscapeString(d.OGTitle),
		"OG_DESCRIPTION": html.EscapeString(d.OGDescription),
		"OG_IMAGE":       html.EscapeString(d.OGImage),
		"FAVICON":        html.EscapeString(d.Favicon),
		"CANONICAL":      html.EscapeString(canonical),
	}
}
