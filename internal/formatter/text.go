package formatter

import (
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

type scrubRule struct {
	Label       string
	Re          *regexp.Regexp
	Replacement string
}

var (
	wholeFenceRE  = regexp.MustCompile("(?s)^\\s*```(?:html|markdown|md)?[ \\t]*\\n(.*?)\\n```\\s*$")
	frontmatterRE = regexp.MustCompile(`(?s)^\s*---[ \t]*\n(.*?)\n---[ \t]*(?:\n|$)`)
	blankRunRE    = regexp.MustCompile(`\n{3,}`)
	trailSpaceRE  = regexp.MustCompile(`[ \t]+\n`)
)

// authorNoteRules strip the trailing "what we covered" notes that generators
// append after a horizontal rule.
var authorNoteRules = []scrubRule{
	{Label: "in this post", Re: regexp.MustCompile(`(?is)\n\s*---+\s*\n\s*(?:In this (?:blog post|article)|This comprehensive guide)\b.*$`)},
	{Label: "conclusion note", Re: regexp.MustCompile(`(?is)\n\s*---+\s*\n\s*(?:In conclusion|To summarize|To conclude)\b.*$`)},
	{Label: "strategy note", Re: regexp.MustCompile(`(?is)\n\s*---+\s*\n[^\n]*(?:by following|implementing these|following these)[^\n]*(?:strategies|tips|practices)[^\n]*$`)},
	{Label: "dangling rule", Re: regexp.MustCompile(`\n\s*---+\s*$`)},
}

// textRules run in order over the raw text before any markup conversion.
var textRules = []scrubRule{
	// Double-encoded entities from round-tripped editors.
	{Label: "double lt", Re: regexp.MustCompile(`&amp;lt;`), Replacement: "&lt;"},
	{Label: "double gt", Re: regexp.MustCompile(`&amp;gt;`), Replacement: "&gt;"},
	{Label: "double quot", Re: regexp.MustCompile(`&amp;quot;`), Replacement: "&quot;"},
	{Label: "double amp", Re: regexp.MustCompile(`&amp;amp;`), Replacement: "&amp;"},
	{Label: "encoded heading fragment", Re: regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*&lt;.*$`)},
	{Label: "horizontal rule", Re: regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)},
	// **E**nhanced SEO: -> **Enhanced SEO:**
	{Label: "split bold", Re: regexp.MustCompile(`\*\*([A-Z])\*\*([a-z][A-Za-z \t]*:)`), Replacement: "**$1$2**"},
	{Label: "triple stars", Re: regexp.MustCompile(`\*{3,}`), Replacement: "**"},
	{Label: "hook prefix", Re: regexp.MustCompile(`(?im)^([ \t#*]*)Hook Introduction:[ \t]*`), Replacement: "$1"},
	{Label: "h1 prefix", Re: regexp.MustCompile(`(?m)^([ \t#*]*)H1:[ \t]*`), Replacement: "$1"},
	{Label: "conclusion prefix", Re: regexp.MustCompile(`(?im)^([ \t#*]*)Conclusion:[ \t]+(\S)`), Replacement: "$1$2"},
	{Label: "cta prefix", Re: regexp.MustCompile(`(?im)^([ \t#*]*)Call[- ]to[- ]Action:[ \t]*`), Replacement: "$1"},
	{Label: "title line", Re: regexp.MustCompile(`(?im)^[ \t*]*Title:[^\n]*\n?`)},
	{Label: "empty heading", Re: regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*$`)},
	{Label: "heading colon", Re: regexp.MustCompile(`(?m)^([ \t]*#{1,6}[ \t]+[^\n]*?)[ \t]*:[ \t]*$`), Replacement: "$1"},
	{Label: "split pro tip", Re: regexp.MustCompile(`(?m)^([ \t]*#{1,6}[ \t]+)P ro Tip`), Replacement: "${1}Pro Tip"},
	{Label: "ellipsis", Re: regexp.MustCompile(`\.\.\.`), Replacement: "…"},
	{Label: "repeated bang", Re: regexp.MustCompile(`!{2,}`), Replacement: "!"},
	{Label: "repeated question", Re: regexp.MustCompile(`\?{2,}`), Replacement: "?"},
	{Label: "repeated comma", Re: regexp.MustCompile(`,{2,}`), Replacement: ","},
	{Label: "empty tag token", Re: regexp.MustCompile(`<\s*>`)},
}

// cleanText applies the raw text rules and returns the cleaned text plus any
// title found in a frontmatter block.
func cleanText(s string) (string, string) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\u00a0':
			return ' '
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)

	if m := wholeFenceRE.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	var title string
	s, title = stripFrontmatter(s)

	for _, rule := range authorNoteRules {
		s = rule.Re.ReplaceAllString(s, rule.Replacement)
	}
	s = applyRules(s, textRules)

	s = trailSpaceRE.ReplaceAllString(s, "\n")
	s = blankRunRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s), title
}

func applyRules(s string, rules []scrubRule) string {
	for _, rule := range rules {
		if rule.Re.MatchString(s) {
			s = rule.Re.ReplaceAllString(s, rule.Replacement)
		}
	}
	return s
}

// stripFrontmatter removes a leading YAML block. Blocks that do not parse as
// a mapping are left alone since "---" is also a markdown rule.
func stripFrontmatter(s string) (string, string) {
	m := frontmatterRE.FindStringSubmatchIndex(s)
	if m == nil {
		return s, ""
	}
	var meta map[string]any
	if err := yaml.Unmarshal([]byte(s[m[2]:m[3]]), &meta); err != nil || len(meta) == 0 {
		return s, ""
	}
	title, _ := meta["title"].(string)
	return s[m[1]:], strings.TrimSpace(title)
}
