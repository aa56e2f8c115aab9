package formatter

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type domOptions struct {
	title            string
	maxHeadingLength int
}

var (
	creditRE      = regexp.MustCompile(`(?i)^\s*(?:photo|image)\s+(?:by|credit|courtesy)\b.*\b(?:pexels|unsplash|pixabay|shutterstock|getty)\b`)
	spaceBeforeRE = regexp.MustCompile(`[ \t]+([,;:!?])`)
	spaceAfterRE  = regexp.MustCompile(`([,;!?])([A-Za-z])`)
	sentenceGapRE = regexp.MustCompile(`([a-z]{2}[.])([A-Z][a-z])`)
	bareDomainRE  = regexp.MustCompile(`^(?:www\.)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:[/?#].*)?$`)
)

const maxDataURILength = 256

// parseFragment parses s as the children of a synthetic body element.
func parseFragment(s string) (*goquery.Selection, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(body).Selection, nil
}

func renderFragment(root *goquery.Selection) (string, error) {
	out, err := root.Html()
	if err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// repairDOM runs the structural passes over parsed HTML.
func repairDOM(s string, opts domOptions) string {
	root, err := parseFragment(s)
	if err != nil {
		return s
	}

	root.Find("script, style, iframe, object, embed, form, link, meta, noscript").Remove()
	stripUnsafeAttrs(root)
	stripImageCredits(root)
	normalizeHeadings(root, opts)
	root.Find("a").Each(func(_ int, a *goquery.Selection) { normalizeLink(a) })
	root.Find("img").Each(func(_ int, img *goquery.Selection) { enhanceImage(img) })
	fixPunctuation(root.Nodes[0])
	removeEmpty(root)
	dedupeAdjacent(root)
	wrapStrayInline(root.Nodes[0])

	out, err := renderFragment(root)
	if err != nil {
		return s
	}
	return out
}

func stripUnsafeAttrs(root *goquery.Selection) {
	root.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Nodes[0]
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			key := strings.ToLower(attr.Key)
			val := strings.TrimSpace(strings.ToLower(attr.Val))
			switch {
			case strings.HasPrefix(key, "on"), key == "itemprop", key == "style":
				continue
			case (key == "href" || key == "src") && strings.HasPrefix(val, "javascript:"):
				continue
			case key == "src" && strings.HasPrefix(val, "data:") && len(val) > maxDataURILength:
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})
}

func stripImageCredits(root *goquery.Selection) {
	root.Find("figcaption").Remove()
	root.Find("p, span, div, small, em").Each(func(_ int, sel *goquery.Selection) {
		if creditRE.MatchString(sel.Text()) {
			sel.Remove()
		}
	})
}

func normalizeHeadings(root *goquery.Selection, opts domOptions) {
	selector := "h3, h4, h5, h6"
	if opts.title != "" {
		selector = "h1, " + selector
	}
	root.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Nodes[0]
		node.Data = "h2"
		node.DataAtom = atom.H2
	})
	root.Find("h1, h2").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(multiSpaceRE.ReplaceAllString(sel.Text(), " "))
		limited := limitHeading(text, opts.maxHeadingLength)
		if limited != text {
			sel.SetText(limited)
		}
	})
}

// normalizeURL turns bare domains into https URLs.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case raw == "", strings.HasPrefix(raw, "/"), strings.HasPrefix(raw, "#"):
		return raw
	case strings.HasPrefix(lower, "//"):
		return "https:" + raw
	case strings.Contains(lower, "://"), strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"):
		return raw
	case bareDomainRE.MatchString(lower):
		return "https://" + raw
	}
	return raw
}

func isExternal(href string) bool {
	u, err := url.Parse(href)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func normalizeLink(a *goquery.Selection) {
	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		a.RemoveAttr("target")
		return
	}
	href = normalizeURL(href)
	a.SetAttr("href", href)

	var rel []string
	if existing, ok := a.Attr("rel"); ok {
		for _, token := range strings.Fields(strings.ToLower(existing)) {
			if token == "nofollow" || token == "ugc" || token == "noopener" || token == "noreferrer" {
				continue
			}
			rel = append(rel, token)
		}
	}

	switch {
	case strings.HasPrefix(strings.ToLower(href), "mailto:"):
		a.RemoveAttr("target")
	case isExternal(href):
		a.SetAttr("target", "_blank")
		rel = append(rel, "noopener", "noreferrer")
	}
	if len(rel) == 0 {
		a.RemoveAttr("rel")
		return
	}
	a.SetAttr("rel", strings.Join(rel, " "))
}

func altFromSrc(src string) string {
	if u, err := url.Parse(src); err == nil {
		src = u.Path
	}
	base := strings.TrimSuffix(path.Base(src), path.Ext(src))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		return "Blog image"
	}
	return TitleCase(base)
}

func enhanceImage(img *goquery.Selection) {
	src, _ := img.Attr("src")
	if strings.TrimSpace(src) == "" {
		img.Remove()
		return
	}
	if alt, ok := img.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
		img.SetAttr("alt", altFromSrc(src))
	}
	img.SetAttr("loading", "lazy")
	img.SetAttr("decoding", "async")
	img.SetAttr("referrerpolicy", "no-referrer")

	parent := img.Parent()
	switch goquery.NodeName(parent) {
	case "figure":
		parent.AddClass("post-figure")
	case "p":
		// A paragraph holding only the image becomes the figure.
		if strings.TrimSpace(parent.Text()) == "" && parent.Children().Length() == 1 {
			node := parent.Nodes[0]
			node.Data = "figure"
			node.DataAtom = atom.Figure
			parent.AddClass("post-figure")
		}
	case "body", "div", "section", "article":
		img.WrapHtml(`<figure class="post-figure"></figure>`)
	}
}

// fixPunctuation repairs spacing around punctuation in text nodes, leaving
// code and link text alone.
func fixPunctuation(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Pre, atom.Code, atom.A, atom.Script, atom.Style:
			return
		}
	}
	if n.Type == html.TextNode {
		text := spaceBeforeRE.ReplaceAllString(n.Data, "$1")
		text = spaceAfterRE.ReplaceAllString(text, "$1 $2")
		n.Data = sentenceGapRE.ReplaceAllString(text, "$1 $2")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fixPunctuation(c)
	}
}

const emptyCandidates = "p, strong, em, b, i, span, li, h1, h2, h3, h4, h5, h6, blockquote"

func removeEmpty(root *goquery.Selection) {
	for pass := 0; pass < 3; pass++ {
		removed := 0
		root.Find(emptyCandidates).Each(func(_ int, sel *goquery.Selection) {
			if strings.TrimSpace(sel.Text()) != "" || sel.Find("img, video, iframe, br, hr, input").Length() > 0 {
				return
			}
			sel.Remove()
			removed++
		})
		root.Find("ul, ol").Each(func(_ int, sel *goquery.Selection) {
			if sel.Children().Length() == 0 {
				sel.Remove()
				removed++
			}
		})
		if removed == 0 {
			return
		}
	}
}

func dedupeAdjacent(root *goquery.Selection) {
	prev := ""
	root.Children().Each(func(_ int, sel *goquery.Selection) {
		key := strings.ToLower(strings.Join(strings.Fields(sel.Text()), " "))
		if len(key) > dedupeKeyLimit {
			key = key[:dedupeKeyLimit]
		}
		if key != "" && key == prev && sel.Find("img").Length() == 0 {
			sel.Remove()
			return
		}
		prev = key
	})
}

var inlineAtoms = map[atom.Atom]bool{
	atom.A: true, atom.Strong: true, atom.Em: true, atom.B: true, atom.I: true,
	atom.Span: true, atom.Code: true, atom.Br: true, atom.U: true, atom.Mark: true,
	atom.Small: true, atom.Sub: true, atom.Sup: true, atom.S: true,
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		return inlineAtoms[n.DataAtom]
	}
	return false
}

// wrapStrayInline groups runs of top-level text and inline elements into
// paragraphs.
func wrapStrayInline(body *html.Node) {
	var run []*html.Node
	flush := func(before *html.Node) {
		if !hasVisibleText(run) {
			for _, n := range run {
				if n.Type == html.TextNode {
					body.RemoveChild(n)
				}
			}
			run = nil
			return
		}
		p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
		body.InsertBefore(p, before)
		for _, n := range run {
			body.RemoveChild(n)
			p.AppendChild(n)
		}
		trimParagraph(p)
		run = nil
	}
	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		if isInline(c) {
			run = append(run, c)
		} else if len(run) > 0 {
			flush(c)
		}
		c = next
	}
	if len(run) > 0 {
		flush(nil)
	}
}

func hasVisibleText(nodes []*html.Node) bool {
	for _, n := range nodes {
		if n.Type == html.ElementNode || strings.TrimSpace(n.Data) != "" {
			return true
		}
	}
	return false
}

func trimParagraph(p *html.Node) {
	if first := p.FirstChild; first != nil && first.Type == html.TextNode {
		first.Data = strings.TrimLeft(first.Data, " \t\n")
	}
	if last := p.LastChild; last != nil && last.Type == html.TextNode {
		last.Data = strings.TrimRight(last.Data, " \t\n")
	}
}

var finalRules = []scrubRule{
	{Label: "empty tag token", Re: regexp.MustCompile(`<\s*>`)},
	{Label: "br runs", Re: regexp.MustCompile(`(?:<br\s*/?>\s*){2,}`), Replacement: "<br/>"},
	{Label: "empty paragraph", Re: regexp.MustCompile(`<p>\s*</p>`)},
	{Label: "trailing number", Re: regexp.MustCompile(`(?:\s*<p>\s*\d{1,3}\s*</p>)+\s*$`)},
	{Label: "block gaps", Re: regexp.MustCompile(`>\s*\n\s*\n+\s*<`), Replacement: ">\n<"},
}

func finalCleanup(s string) string {
	return strings.TrimSpace(applyRules(s, finalRules))
}

var blockTagRE = regexp.MustCompile(`(?i)<(p|h[1-6]|ul|ol|blockquote|pre|figure|table)\b`)

// ensureStructure wraps content that has no block elements in paragraphs.
func ensureStructure(s string) string {
	if strings.TrimSpace(s) == "" || blockTagRE.MatchString(s) {
		return s
	}
	var b strings.Builder
	for _, part := range strings.Split(s, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteString("<p>" + part + "</p>\n")
	}
	return strings.TrimSpace(b.String())
}

// visibleLength counts the non-space runes of the text content.
func visibleLength(s string) int {
	text := s
	if root, err := parseFragment(s); err == nil {
		text = root.Text()
	}
	return utf8.RuneCountInString(strings.Join(strings.Fields(text), ""))
}
