package blog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceTokens(t *testing.T) {
	t.Parallel()

	tpl := `<title>{{ SITE_TITLE }}</title><h1>{{title}}</h1><p>{{ Missing }}</p><i>{{POST_TITLE}}</i>`
	out := ReplaceTokens(tpl, map[string]string{"SITE_TITLE": "Site", "TITLE": "$1 Deals", "POST_TITLE": "Post"})

	require.Equal(t, `<title>Site</title><h1>$1 Deals</h1><p>{{ Missing }}</p><i>Post</i>`, out)
}

func TestInjectFallbackOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		tpl  string
		want string
	}{
		{"marker", `<main><!-- POSTS --></main>`, `<main>X</main>`},
		{"token", `<main>{{ posts }}</main>`, `<main>X</main>`},
		{"empty div", `<div id="posts"></div>`, `X`},
		{"main", `<main><h1>t</h1></main>`, `<main><h1>t</h1>X</main>`},
		{"body", `<body><h1>t</h1></body>`, `<body><h1>t</h1>X</body>`},
		{"append", `<h1>t</h1>`, `<h1>t</h1>X`},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Inject(tc.tpl, MarkerPosts, "X"), tc.name)
	}
}

func TestRenderItemsEscapes(t *testing.T) {
	t.Parallel()

	out := RenderItems([]Item{{Title: "<b>Tips</b>", Href: "/a?b=1&c=2", Published: "March 1, 2025", Excerpt: "x < y"}})

	require.Contains(t, out, `<a href="/a?b=1&amp;c=2"><strong>&lt;b&gt;Tips&lt;/b&gt;</strong></a>`)
	require.Contains(t, out, `<div class="meta">March 1, 2025</div>`)
	require.Contains(t, out, `<p>x &lt; y</p>`)
	require.Equal(t, `<ul class="posts"></ul>`, RenderItems(nil))
}

func TestRenderPagination(t *testing.T) {
	t.Parallel()

	require.Empty(t, RenderPagination(1, 1, ""))

	first := RenderPagination(1, 3, "")
	require.Contains(t, first, `class="page prev disabled" href="#"`)
	require.Contains(t, first, `<span class="page current" aria-current="page">1</span>`)
	require.Contains(t, first, `<a class="page" href="/page/2">2</a>`)
	require.Contains(t, first, `<a class="page next" href="/page/2"`)

	mid := RenderPagination(6, 10, "/posts")
	require.Contains(t, mid, `<a class="page prev" href="/posts/page/5"`)
	require.Equal(t, 4, strings.Count(mid, `<a class="page" href=`))
	require.Contains(t, mid, `href="/posts/page/4">4</a>`)
	require.Contains(t, mid, `href="/posts/page/8">8</a>`)
	require.NotContains(t, mid, `>9</a>`)

	second := RenderPagination(2, 2, "/blog")
	require.Contains(t, second, `<a class="page prev" href="/blog/"`)
	require.Contains(t, second, `class="page next disabled"`)
}

func TestInjectPostContent(t *testing.T) {
	t.Parallel()

	out, ok := injectPostContent(`<article><!--POST_CONTENT--></article>`, "<p>x</p>")
	require.True(t, ok)
	require.Equal(t, `<article><p>x</p></article>`, out)

	out, ok = injectPostContent(`<article><!-- POST_CONTENT --></article>`, "<p>x</p>")
	require.True(t, ok)
	require.Equal(t, `<article><p>x</p></article>`, out)

	_, ok = injectPostContent(`<article></article>`, "<p>x</p>")
	require.False(t, ok)
}

func TestWithPostsStylesheet(t *testing.T) {
	t.Parallel()

	require.Equal(t, `<head>`+postsStylesheet+`</head>`, withPostsStylesheet(`<head></head>`))
	require.True(t, strings.HasPrefix(withPostsStylesheet(`<p>x</p>`), postsStylesheet))
}
