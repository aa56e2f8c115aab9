package formatter

import (
	"bytes"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	htmlTagRE = regexp.MustCompile(`(?i)<\s*(p|div|span|a|br|img|h[1-6]|ul|ol|li|table|tr|td|th|strong|em|b|i|code|pre|blockquote|article|section|figure)\b[^>]*>`)
	// escapedTagRE finds markup that was entity-escaped wholesale.
	escapedTagRE = regexp.MustCompile(`(?i)&lt;\s*/?\s*(p|h[1-6]|ul|ol|li|strong|em|blockquote|a|br)\b[^&]*&gt;`)
	markdownRE   = regexp.MustCompile("(?m)^(?:#{1,6}[ \\t]|[-*+][ \\t]|\\d+\\.[ \\t]|>[ \\t]?|```)|\\*\\*[^*\\n]+\\*\\*|\\[[^\\]\\n]+\\]\\([^)\\n]+\\)")
)

// boldHeadingRE turns a line that is only bold text into a heading.
var boldHeadingRE = regexp.MustCompile(`(?m)^[ \t]*\*\*([^*\n]{2,}?):?\*\*:?[ \t]*$`)

// inlineHTMLRules convert markdown left inside otherwise HTML content.
var inlineHTMLRules = []scrubRule{
	{Label: "md link", Re: regexp.MustCompile(`\[([^\]<>\n]+)\]\((https?://[^\s)"'<>]+)\)`), Replacement: `<a href="$2">$1</a>`},
	{Label: "md bold", Re: regexp.MustCompile(`\*\*([^*<>\n]+?)\*\*`), Replacement: "<strong>$1</strong>"},
	{Label: "md heading paragraph", Re: regexp.MustCompile(`(?i)<p>\s*#{1,3}\s+([^<]+?)\s*</p>`), Replacement: "<h2>$1</h2>"},
	{Label: "md heading line", Re: regexp.MustCompile(`(?m)^[ \t]*#{1,3}[ \t]+([^<\n]+?)[ \t]*$`), Replacement: "<h2>$1</h2>"},
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

func looksLikeHTML(s string) bool {
	return htmlTagRE.MatchString(s)
}

func looksLikeMarkdown(s string) bool {
	return markdownRE.MatchString(s)
}

// toHTML converts the cleaned text into HTML, picking the HTML, markdown or
// plain text path.
func (p *Processor) toHTML(s string) string {
	if !looksLikeHTML(s) && escapedTagRE.MatchString(s) {
		s = html.UnescapeString(s)
	}
	switch {
	case looksLikeHTML(s):
		return applyRules(s, inlineHTMLRules)
	case looksLikeMarkdown(s):
		return p.renderMarkdown(s)
	default:
		return renderBlocks(parseSections(s))
	}
}

func (p *Processor) renderMarkdown(s string) string {
	s = boldHeadingRE.ReplaceAllString(s, "## $1")
	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(s), &buf); err != nil {
		return renderBlocks(parseSections(s))
	}
	return buf.String()
}

var (
	inlineLinkRE = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	bareURLRE    = regexp.MustCompile(`https?://[^\s<>"')\]]+[^\s<>"')\].,;:!?]`)
	codeSpanRE   = regexp.MustCompile("`([^`\\n]+)`")
	boldRE       = regexp.MustCompile(`\*\*([^*\n]+?)\*\*|__([^_\n]+?)__`)
	italicRE     = regexp.MustCompile(`(^|[^\w*])\*([^*\s][^*\n]*?)\*($|[^\w*])`)
)

// formatInline renders one line of plain text. Anchors and code spans are
// swapped for placeholders so the emphasis rules never touch them.
func formatInline(s string) string {
	var tokens []string
	hold := func(rendered string) string {
		tokens = append(tokens, rendered)
		return "\x00" + strconv.Itoa(len(tokens)-1) + "\x00"
	}

	s = codeSpanRE.ReplaceAllStringFunc(s, func(m string) string {
		inner := codeSpanRE.FindStringSubmatch(m)[1]
		return hold("<code>" + html.EscapeString(inner) + "</code>")
	})
	s = inlineLinkRE.ReplaceAllStringFunc(s, func(m string) string {
		parts := inlineLinkRE.FindStringSubmatch(m)
		return hold(`<a href="` + html.EscapeString(normalizeURL(parts[2])) + `">` + html.EscapeString(parts[1]) + "</a>")
	})
	s = bareURLRE.ReplaceAllStringFunc(s, func(m string) string {
		return hold(`<a href="` + html.EscapeString(m) + `">` + html.EscapeString(m) + "</a>")
	})

	s = html.EscapeString(html.UnescapeString(s))
	s = boldRE.ReplaceAllStringFunc(s, func(m string) string {
		parts := boldRE.FindStringSubmatch(m)
		inner := parts[1]
		if inner == "" {
			inner = parts[2]
		}
		return "<strong>" + inner + "</strong>"
	})
	s = italicRE.ReplaceAllString(s, "$1<em>$2</em>$3")

	for i, tok := range tokens {
		s = strings.Replace(s, "\x00"+strconv.Itoa(i)+"\x00", tok, 1)
	}
	return s
}
