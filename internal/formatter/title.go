package formatter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	titlePrefixRE  = regexp.MustCompile(`(?i)^\s*(?:title:|#+)\s*`)
	labelPrefixRE  = regexp.MustCompile(`(?i)^(?:conclusion|call[- ]to[- ]action|h[1-6]):\s*`)
	sentenceEndRE  = regexp.MustCompile(`[.!?]+(\s+)\S`)
	multiSpaceRE   = regexp.MustCompile(`\s+`)
	acronymRE      = regexp.MustCompile(`^[A-Z0-9]{2,}$`)
	innerCapitalRE = regexp.MustCompile(`[A-Z]`)
)

var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "but": true,
	"by": true, "for": true, "in": true, "nor": true, "of": true, "on": true,
	"or": true, "per": true, "the": true, "to": true, "vs": true, "via": true,
	"with": true,
}

// cleanTitle strips markdown decoration and labels from a title.
func cleanTitle(title string) string {
	title = strings.NewReplacer("**", "", "*", "").Replace(title)
	title = titlePrefixRE.ReplaceAllString(title, "")
	return strings.TrimSpace(multiSpaceRE.ReplaceAllString(title, " "))
}

func normalizeForCompare(s string) string {
	s = strings.NewReplacer("**", "", "*", "").Replace(s)
	s = titlePrefixRE.ReplaceAllString(s, "")
	s = strings.TrimRight(strings.TrimSpace(s), ":.")
	return strings.ToLower(multiSpaceRE.ReplaceAllString(s, " "))
}

// removeDuplicateTitle drops a leading block that repeats the title.
func removeDuplicateTitle(s, title string) string {
	if title == "" {
		return s
	}
	doc, err := parseFragment(s)
	if err != nil {
		return s
	}
	first := doc.Children().First()
	if first.Length() == 0 || !isTitleCandidate(first) {
		return s
	}
	if !matchesTitle(first.Text(), title) {
		return s
	}
	first.Remove()
	out, err := renderFragment(doc)
	if err != nil {
		return s
	}
	return out
}

func isTitleCandidate(sel *goquery.Selection) bool {
	switch goquery.NodeName(sel) {
	case "h1", "h2", "h3":
		return true
	case "p":
		// A paragraph only counts when it is nothing but the title, possibly bold.
		children := sel.Children()
		return children.Length() == 0 || (children.Length() == 1 && children.Is("strong, b"))
	}
	return false
}

func matchesTitle(text, title string) bool {
	got := normalizeForCompare(text)
	want := normalizeForCompare(title)
	if got == "" || want == "" {
		return false
	}
	if got == want {
		return true
	}
	n := utf8.RuneCountInString(want)
	if n <= 20 {
		return false
	}
	prefixLen := min(50, n-5)
	prefix := string([]rune(want)[:prefixLen])
	return strings.HasPrefix(got, prefix)
}

// limitHeading keeps the first sentence of a heading and caps its length at
// a word boundary.
func limitHeading(text string, maxLen int) string {
	text = strings.TrimSpace(labelPrefixRE.ReplaceAllString(strings.TrimSpace(text), ""))
	if loc := sentenceEndRE.FindStringSubmatchIndex(text); loc != nil {
		text = text[:loc[2]]
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	var b strings.Builder
	for _, word := range strings.Fields(text) {
		next := utf8.RuneCountInString(b.String()) + utf8.RuneCountInString(word)
		if b.Len() > 0 {
			next++
		}
		if next > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() == 0 {
		return string([]rune(text)[:maxLen])
	}
	return b.String()
}

// TitleCase capitalizes a headline, keeping small words lower case except at
// either end. Acronyms and camelCase words are left alone.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if acronymRE.MatchString(w) || innerCapitalRE.MatchString(w[1:]) {
			continue
		}
		lower := strings.ToLower(w)
		if i != 0 && i != len(words)-1 && smallWords[lower] {
			words[i] = lower
			continue
		}
		words[i] = capitalize(lower)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			return s[:i] + string(unicode.ToUpper(r)) + s[i+utf8.RuneLen(r):]
		}
	}
	return s
}
