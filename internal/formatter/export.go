package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// DefaultExcerptLength is the rune budget used for listing excerpts.
const DefaultExcerptLength = 180

var slugSeparatorRE = regexp.MustCompile(`[^a-z0-9]+`)

// PlainText returns the visible text of an HTML fragment with whitespace
// collapsed.
func PlainText(s string) string {
	root, err := parseFragment(s)
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	root.Find("script, style, noscript").Remove()
	// Keep block boundaries from gluing words together.
	root.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, br, figure, pre").AppendHtml(" ")
	return strings.Join(strings.Fields(root.Text()), " ")
}

// Excerpt returns the first n runes of the visible text, marking truncation
// with an ellipsis.
func Excerpt(s string, n int) string {
	if n <= 0 {
		n = DefaultExcerptLength
	}
	text := []rune(PlainText(s))
	if len(text) <= n {
		return string(text)
	}
	return strings.TrimSpace(string(text[:n])) + "…"
}

// ToMarkdown converts cleaned HTML to markdown.
func ToMarkdown(s string) (string, error) {
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Slugify produces a lowercase ASCII slug joined with dashes.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	slug := slugSeparatorRE.ReplaceAllString(b.String(), "-")
	return strings.Trim(slug, "-")
}
