package blog

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MarkerPosts is where listing items are injected.
	MarkerPosts = "<!-- POSTS -->"
	// MarkerPagination is where pagination is injected.
	MarkerPagination = "<!-- PAGINATION -->"
	// MarkerPostContent is where a post body is injected.
	MarkerPostContent = "<!-- POST_CONTENT -->"

	compactContentMark = "<!--POST_CONTENT-->"
	postsStylesheet    = `<link rel="stylesheet" href="/automation-posts.css">`
	maxPageButtons     = 5
)

var postsTokenRE = regexp.MustCompile(`(?i)\{\{\s*POSTS\s*\}\}`)

// ReplaceTokens substitutes {{ KEY }} placeholders, case-insensitively and
// with any inner whitespace. Values are inserted verbatim.
func ReplaceTokens(tpl string, tokens map[string]string) string {
	for key, value := range tokens {
		re, err := regexp.Compile(`(?i)\{\{\s*` + regexp.QuoteMeta(key) + `\s*\}\}`)
		if err != nil {
			continue
		}
		tpl = re.ReplaceAllLiteralString(tpl, value)
	}
	return tpl
}

// Inject places fragment into tpl at the first available target: the marker,
// a {{POSTS}} token, an empty posts div, the end of main, the end of body, or
// the end of the document.
func Inject(tpl, marker, fragment string) string {
	switch {
	case marker != "" && strings.Contains(tpl, marker):
		return strings.Replace(tpl, marker, fragment, 1)
	case postsTokenRE.MatchString(tpl):
		return postsTokenRE.ReplaceAllLiteralString(tpl, fragment)
	case strings.Contains(tpl, `<div id="posts"></div>`):
		return strings.Replace(tpl, `<div id="posts"></div>`, fragment, 1)
	case strings.Contains(tpl, "</main>"):
		return strings.Replace(tpl, "</main>", fragment+"</main>", 1)
	case strings.Contains(tpl, "</body>"):
		return strings.Replace(tpl, "</body>", fragment+"</body>", 1)
	default:
		return tpl + fragment
	}
}

// Item is one entry of a listing page. Fields hold plain text.
type Item struct {
	Title     string
	Href      string
	Published string
	Excerpt   string
}

// RenderItems renders listing items as post cards.
func RenderItems(items []Item) string {
	var b strings.Builder
	b.WriteString(`<ul class="posts">`)
	for _, it := range items {
		b.WriteString(`<li class="post-item">`)
		fmt.Fprintf(&b, `<a href="%s"><strong>%s</strong></a>`, html.EscapeString(it.Href), html.EscapeString(it.Title))
		if it.Published != "" {
			fmt.Fprintf(&b, `<div class="meta">%s</div>`, html.EscapeString(it.Published))
		}
		if it.Excerpt != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(it.Excerpt))
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	return b.String()
}

// RenderPagination renders prev/next links around at most five numbered
// buttons. A single page renders nothing.
func RenderPagination(page, totalPages int, base string) string {
	if totalPages <= 1 {
		return ""
	}
	page = max(1, min(page, totalPages))
	href := func(n int) string {
		if n <= 1 {
			if base == "" {
				return "/"
			}
			return base + "/"
		}
		return base + "/page/" + strconv.Itoa(n)
	}
	start := max(1, min(page-2, totalPages-(maxPageButtons-1)))
	end := min(totalPages, start+maxPageButtons-1)

	var b strings.Builder
	b.WriteString(`<nav class="pagination" role="navigation" aria-label="Pagination">`)
	if page == 1 {
		b.WriteString(`<a class="page prev disabled" href="#" aria-label="Previous">‹</a>`)
	} else {
		fmt.Fprintf(&b, `<a class="page prev" href="%s" aria-label="Previous">‹</a>`, href(page-1))
	}
	for n := start; n <= end; n++ {
		if n == page {
			fmt.Fprintf(&b, `<span class="page current" aria-current="page">%d</span>`, n)
			continue
		}
		fmt.Fprintf(&b, `<a class="page" href="%s">%d</a>`, href(n), n)
	}
	if page == totalPages {
		b.WriteString(`<a class="page next disabled" href="#" aria-label="Next">›</a>`)
	} else {
		fmt.Fprintf(&b, `<a class="page next" href="%s" aria-label="Next">›</a>`, href(page+1))
	}
	b.WriteString(`</nav>`)
	return b.String()
}

// InfoPage wraps a body fragment in a minimal HTML document.
func InfoPage(status int, body string) string {
	return `<!doctype html><html><head><meta charset="utf-8">` +
		`<meta name="viewport" content="width=device-width,initial-scale=1">` +
		`<title>` + strconv.Itoa(status) + `</title></head><body>` + body + `</body></html>`
}

// withPostsStylesheet links the shared post stylesheet into a template.
func withPostsStylesheet(tpl string) string {
	if strings.Contains(tpl, "</head>") {
		return strings.Replace(tpl, "</head>", postsStylesheet+"</head>", 1)
	}
	return postsStylesheet + tpl
}

// injectPostContent fills either spelling of the post content marker.
func injectPostContent(tpl, content string) (string, bool) {
	if !strings.Contains(tpl, MarkerPostContent) && !strings.Contains(tpl, compactContentMark) {
		return tpl, false
	}
	tpl = strings.Replace(tpl, compactContentMark, content, 1)
	tpl = strings.Replace(tpl, MarkerPostContent, content, 1)
	return tpl, true
}

func fallbackListing(siteTitle, items, pagination string) string {
	title := html.EscapeString(siteTitle)
	return `<!doctype html><html><head><meta charset="utf-8">` +
		`<meta name="viewport" content="width=device-width,initial-scale=1">` + postsStylesheet +
		`<title>` + title + `</title></head><body><h1>` + title + `</h1>` + items + pagination + `</body></html>`
}
