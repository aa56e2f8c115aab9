package blog

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// pathHeaders are consulted in order when a proxy or rewrite rule hides the
// path the visitor actually requested.
var pathHeaders = []string{
	"X-Nf-Original-Path",
	"X-Nf-Original-Request-Uri",
	"X-Original-Path",
	"X-Original-Uri",
	"X-Forwarded-Uri",
	"X-Forwarded-Path",
	"X-Rewrite-Url",
	"X-Request-Uri",
	"X-Rewrite-Path",
	"X-Amz-Original-Uri",
	"X-Amzn-Original-Url",
}

var (
	functionPathRE = regexp.MustCompile(`(?i)/\.netlify/functions/`)
	listingPathRE  = regexp.MustCompile(`^(/posts|/blog)?(?:/page/(\d+))?/?$`)
	htmlSuffixRE   = regexp.MustCompile(`(?i)\.html/?$`)
)

// ResolveHost returns the bare blog host for a request. A trusted proxy may
// override the Host header with X-Proxy-Host when it presents the shared
// secret in X-Proxy-Secret.
func ResolveHost(r *http.Request, proxySecret string) string {
	host := r.Host
	if proxySecret != "" && strings.TrimSpace(r.Header.Get("X-Proxy-Secret")) == proxySecret {
		if override := strings.TrimSpace(r.Header.Get("X-Proxy-Host")); override != "" {
			host = override
		}
	}
	if host == "" {
		if ref, err := url.Parse(r.Referer()); err == nil {
			host = ref.Host
		}
	}
	return normalizeHost(host)
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	return host
}

// ResolvePath returns the requested path, preferring rewrite headers over the
// URL path. The result has no trailing slash; the root is "/".
func ResolvePath(r *http.Request) string {
	for _, name := range pathHeaders {
		raw := r.Header.Get(name)
		if raw == "" {
			continue
		}
		first, _, _ := strings.Cut(raw, ",")
		candidate := cleanPathCandidate(first)
		if candidate != "" && !functionPathRE.MatchString(candidate) {
			return finalizePath(candidate)
		}
	}
	return finalizePath(cleanPathCandidate(r.URL.Path))
}

func cleanPathCandidate(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Path
		}
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

func finalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// NormalizeSitePath collapses legacy /sites/<domain>/... paths. The domain
// segment is dropped only when it names the current host.
func NormalizeSitePath(p, host string) string {
	if !strings.HasPrefix(p, "/sites/") && p != "/sites" {
		return p
	}
	parts := splitPath(p)
	if len(parts) > 1 && strings.TrimPrefix(strings.ToLower(parts[1]), "www.") == host {
		parts = parts[2:]
	} else {
		parts = parts[1:]
	}
	return "/" + strings.Join(parts, "/")
}

// CanonicalRedirect returns the extensionless path for *.html requests.
func CanonicalRedirect(p string) (string, bool) {
	if !htmlSuffixRE.MatchString(p) {
		return "", false
	}
	target := htmlSuffixRE.ReplaceAllString(p, "")
	if target == "" {
		target = "/"
	}
	return target, true
}

// Listing identifies a listing page.
type Listing struct {
	// Base is "", "/posts" or "/blog".
	Base string
	Page int
}

// ParseListingPage recognizes /, /page/n, /posts, /blog and their paginated
// forms. A page number in the path wins over ?page=n.
func ParseListingPage(p string, query url.Values) (Listing, bool) {
	m := listingPathRE.FindStringSubmatch(p)
	if m == nil {
		return Listing{}, false
	}
	page := 1
	if m[2] != "" {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			page = n
		}
	} else if n, err := strconv.Atoi(query.Get("page")); err == nil && n > 0 {
		page = n
	}
	return Listing{Base: m[1], Page: page}, true
}

// Canonical returns the canonical URL path of the listing page.
func (l Listing) Canonical() string {
	if l.Page > 1 {
		return l.Base + "/page/" + strconv.Itoa(l.Page)
	}
	return l.Base + "/"
}

// PostPath is a post request split into an optional theme and a slug.
type PostPath struct {
	Theme    string
	Slug     string
	UnderDir bool
}

// ParsePostPath splits a post path. /themes/<t>/<slug>, /blog/<t>/<slug> and
// /<t>/<slug> carry a theme; /posts/<slug> uses the domain's theme.
func ParsePostPath(p, selectedTheme string) PostPath {
	parts := splitPath(p)
	if len(parts) == 0 {
		return PostPath{}
	}
	switch parts[0] {
	case "themes":
		if len(parts) >= 3 {
			return PostPath{Theme: parts[1], Slug: trimHTML(strings.Join(parts[2:], "/"))}
		}
		return PostPath{Slug: strings.Join(parts[1:], "/")}
	case "blog":
		if len(parts) >= 3 {
			return PostPath{Theme: parts[1], Slug: strings.Join(parts[2:], "/")}
		}
		return PostPath{Slug: strings.Join(parts[1:], "/")}
	case "posts":
		return PostPath{Theme: selectedTheme, Slug: trimHTML(strings.Join(parts[1:], "/")), UnderDir: true}
	}
	if len(parts) >= 2 {
		return PostPath{Theme: parts[0], Slug: strings.Join(parts[1:], "/")}
	}
	return PostPath{Slug: parts[0]}
}

// SlugCandidates lists the slugs a post may be stored under: theme/slug then
// slug, URL-decoded and lower-cased, each with and without .html.
func SlugCandidates(theme, slug string) []string {
	var raw []string
	if slug != "" && theme != "" {
		raw = append(raw, theme+"/"+slug)
	}
	if slug != "" {
		raw = append(raw, slug)
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok || s == "" {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, r := range raw {
		decoded, err := url.PathUnescape(r)
		if err != nil {
			decoded = r
		}
		lower := strings.ToLower(decoded)
		add(lower)
		if strings.HasSuffix(lower, ".html") {
			add(strings.TrimSuffix(lower, ".html"))
		} else {
			add(lower + ".html")
		}
	}
	return out
}

func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func trimHTML(s string) string {
	if strings.HasSuffix(strings.ToLower(s), ".html") {
		return s[:len(s)-len(".html")]
	}
	return s
}
