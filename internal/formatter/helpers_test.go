package formatter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTitleCase(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"the ultimate guide to SEO and link building": "The Ultimate Guide to SEO and Link Building",
		"why iPhone users click more":                 "Why iPhone Users Click More",
		"links of the":                                "Links of The",
		"":                                            "",
	}
	for in, want := range cases {
		require.Equal(t, want, TitleCase(in), "input %q", in)
	}
}

func TestLimitHeading(t *testing.T) {
	t.Parallel()

	require.Equal(t, "What is a backlink?", limitHeading("What is a backlink?", 80))
	require.Equal(t, "Short answer.", limitHeading("Short answer. Longer explanation follows", 80))
	require.Equal(t, "What is SEO?", limitHeading("What is SEO? More on that below", 80))
	require.Equal(t, "Really?!", limitHeading("Really?!  Yes", 80))
	require.Equal(t, "Guide", limitHeading("Conclusion: Guide", 80))

	long := strings.Repeat("word ", 30)
	got := limitHeading(long, 80)
	require.LessOrEqual(t, utf8.RuneCountInString(got), 80)
	require.False(t, strings.HasSuffix(got, " "))
	require.True(t, strings.HasPrefix(long, got))
}

func TestCleanTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "My Post", cleanTitle("**Title: My Post**"))
	require.Equal(t, "My Post", cleanTitle("## My   Post"))
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello-world-2025", Slugify("Héllo, World! 2025"))
	require.Equal(t, "seo-tips", Slugify("  --SEO   tips-- "))
	require.Equal(t, "", Slugify("!!!"))
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Hello…", Excerpt("<p>Hello world</p>", 5))
	require.Equal(t, "Hello world", Excerpt("<p>Hello world</p>", 0))
	require.Equal(t, "Heading Body", Excerpt("<h2>Heading</h2><p>Body</p>", 50))
}

func TestToMarkdown(t *testing.T) {
	t.Parallel()

	md, err := ToMarkdown("<h2>Title</h2><p>Some <strong>bold</strong> text.</p>")
	require.NoError(t, err)
	require.Contains(t, md, "## Title")
	require.Contains(t, md, "**bold**")
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.com/path", normalizeURL("example.com/path"))
	require.Equal(t, "https://cdn.example.com/a.png", normalizeURL("//cdn.example.com/a.png"))
	require.Equal(t, "/relative", normalizeURL("/relative"))
	require.Equal(t, "mailto:hi@example.com", normalizeURL("mailto:hi@example.com"))
	require.Equal(t, "not a url", normalizeURL("not a url"))
}

func TestFormatInlineProtectsLinks(t *testing.T) {
	t.Parallel()

	out := formatInline("See [the *guide*](https://example.com/a_b_c) and https://example.org/x for **more** & *less*")

	require.Contains(t, out, `<a href="https://example.com/a_b_c">the *guide*</a>`)
	require.Contains(t, out, `<a href="https://example.org/x">https://example.org/x</a>`)
	require.Contains(t, out, "<strong>more</strong>")
	require.Contains(t, out, "<em>less</em>")
	require.Contains(t, out, "&amp;")
}
