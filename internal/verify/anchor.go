package verify

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeLink reduces a URL to a comparable form: no scheme, no leading
// www., lower-case host, no fragment and no trailing slash.
func NormalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}
	if u.Host == "" && u.Scheme == "" && !strings.HasPrefix(raw, "/") {
		// Bare domains parse as a path.
		if reparsed, perr := url.Parse("//" + raw); perr == nil {
			u = reparsed
		}
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	p := strings.TrimRight(u.EscapedPath(), "/")
	out := host + p
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// FindLink locates the first anchor in body that points at target. Relative
// hrefs are resolved against base.
func FindLink(body []byte, base, target string) (LinkAttributes, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return LinkAttributes{}, false, fmt.Errorf("parse page: %w", err)
	}
	baseURL, _ := url.Parse(base)
	want := NormalizeLink(target)

	var (
		attrs LinkAttributes
		found bool
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		resolved := href
		if baseURL != nil {
			if ref, perr := url.Parse(strings.TrimSpace(href)); perr == nil {
				resolved = baseURL.ResolveReference(ref).String()
			}
		}
		if NormalizeLink(resolved) != want {
			return true
		}
		rel, _ := a.Attr("rel")
		tgt, _ := a.Attr("target")
		attrs = LinkAttributes{
			Href:       href,
			Rel:        rel,
			Target:     tgt,
			AnchorText: strings.Join(strings.Fields(a.Text()), " "),
		}
		found = true
		return false
	})
	return attrs, found, nil
}

// IsDofollow reports whether rel lacks the nofollow token.
func IsDofollow(rel string) bool {
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if token == "nofollow" {
			return false
		}
	}
	return true
}

// AnchorMatches reports whether the link's text contains the expected anchor.
// An empty expectation matches any link that reaches the destination.
func AnchorMatches(attrs LinkAttributes, expected string) bool {
	expected = strings.ToLower(strings.Join(strings.Fields(expected), " "))
	if expected == "" {
		return true
	}
	return strings.Contains(strings.ToLower(attrs.AnchorText), expected)
}
