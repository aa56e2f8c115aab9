package blog

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHost(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "http://WWW.Example.com:8080/post", nil)
	require.Equal(t, "example.com", ResolveHost(req, ""))

	req.Header.Set("X-Proxy-Host", "other.com")
	require.Equal(t, "example.com", ResolveHost(req, "s3cret"), "missing secret ignores override")

	req.Header.Set("X-Proxy-Secret", "wrong")
	require.Equal(t, "example.com", ResolveHost(req, "s3cret"))

	req.Header.Set("X-Proxy-Secret", "s3cret")
	require.Equal(t, "other.com", ResolveHost(req, "s3cret"))
	require.Equal(t, "example.com", ResolveHost(req, ""), "override requires a configured secret")
}

func TestResolveHostFallsBackToReferer(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = ""
	req.Header.Set("Referer", "https://www.blog.example.org/page")

	require.Equal(t, "blog.example.org", ResolveHost(req, ""))
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/.netlify/functions/domain-blog-server", nil)
	req.Header.Set("X-Original-Uri", "/.netlify/functions/domain-blog-server")
	req.Header.Set("X-Forwarded-Uri", "https://example.com/my-post/?utm=1#top, /ignored")
	require.Equal(t, "/my-post", ResolvePath(req))

	plain := httptest.NewRequest("GET", "/posts/hello/", nil)
	require.Equal(t, "/posts/hello", ResolvePath(plain))

	root := httptest.NewRequest("GET", "/", nil)
	require.Equal(t, "/", ResolvePath(root))
}

func TestNormalizeSitePath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/my-post", NormalizeSitePath("/sites/example.com/my-post", "example.com"))
	require.Equal(t, "/my-post", NormalizeSitePath("/sites/www.example.com/my-post", "example.com"))
	require.Equal(t, "/other.com/my-post", NormalizeSitePath("/sites/other.com/my-post", "example.com"))
	require.Equal(t, "/", NormalizeSitePath("/sites", "example.com"))
	require.Equal(t, "/sitesmap", NormalizeSitePath("/sitesmap", "example.com"))
}

func TestCanonicalRedirect(t *testing.T) {
	t.Parallel()

	target, ok := CanonicalRedirect("/my-post.HTML")
	require.True(t, ok)
	require.Equal(t, "/my-post", target)

	target, ok = CanonicalRedirect("/index.html/")
	require.True(t, ok)
	require.Equal(t, "/index", target)

	_, ok = CanonicalRedirect("/my-post")
	require.False(t, ok)
}

func TestParseListingPage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path  string
		query string
		want  Listing
		ok    bool
	}{
		{path: "/", want: Listing{Page: 1}, ok: true},
		{path: "/page/3", want: Listing{Page: 3}, ok: true},
		{path: "/posts", want: Listing{Base: "/posts", Page: 1}, ok: true},
		{path: "/blog/page/2", want: Listing{Base: "/blog", Page: 2}, ok: true},
		{path: "/", query: "page=4", want: Listing{Page: 4}, ok: true},
		{path: "/page/2", query: "page=9", want: Listing{Page: 2}, ok: true},
		{path: "/", query: "page=-1", want: Listing{Page: 1}, ok: true},
		{path: "/my-post"},
		{path: "/posts/my-post"},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.query)
		require.NoError(t, err)
		got, ok := ParseListingPage(tc.path, q)
		require.Equal(t, tc.ok, ok, tc.path)
		require.Equal(t, tc.want, got, tc.path)
	}
}

func TestListingCanonical(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/", Listing{Page: 1}.Canonical())
	require.Equal(t, "/posts/page/2", Listing{Base: "/posts", Page: 2}.Canonical())
}

func TestParsePostPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, PostPath{Slug: "my-post"}, ParsePostPath("/my-post", "minimal"))
	require.Equal(t, PostPath{Theme: "lifestyle", Slug: "my-post"}, ParsePostPath("/themes/lifestyle/my-post.html", "minimal"))
	require.Equal(t, PostPath{Theme: "modern", Slug: "my-post"}, ParsePostPath("/blog/modern/my-post", "minimal"))
	require.Equal(t, PostPath{Slug: "my-post"}, ParsePostPath("/blog/my-post", "minimal"))
	require.Equal(t, PostPath{Theme: "minimal", Slug: "my-post", UnderDir: true}, ParsePostPath("/posts/my-post", "minimal"))
	require.Equal(t, PostPath{Theme: "tech", Slug: "a/b"}, ParsePostPath("/tech/a/b", "minimal"))
	require.Equal(t, PostPath{}, ParsePostPath("/", "minimal"))
}

func TestSlugCandidates(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"minimal/my post", "minimal/my post.html", "my post", "my post.html"},
		SlugCandidates("minimal", "My%20Post"))
	require.Equal(t, []string{"guide.html", "guide"}, SlugCandidates("", "Guide.html"))
	require.Empty(t, SlugCandidates("minimal", ""))
}
