// Package standardize scores stored post HTML and rewrites low scoring posts
// through the formatter.
package standardize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Score points.
const (
	pointsHeadings    = 15
	pointsParagraphs  = 10
	pointsSemantic    = 5
	pointsLength      = 10
	pointsLists       = 8
	pointsBlockquote  = 7
	pointsLinks       = 10
	pointsLinkTarget  = 5
	pointsImages      = 5
	pointsClasses     = 8
	pointsSafe        = 7
	pointsConsistency = 10
	inconsistencyCost = 2
	minWordsForLength = 300
	maxScore          = 100
)

var (
	tagRE         = regexp.MustCompile(`<[^>]*>`)
	doubleBreakRE = regexp.MustCompile(`(?i)<br\s*/?>\s*<br\s*/?>`)
	wideSpaceRE   = regexp.MustCompile(`\s{3,}`)
	emptyParaRE   = regexp.MustCompile(`(?i)<p>\s*</p>`)
)

var semanticTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "div": true, "span": true, "strong": true, "em": true, "a": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "img": true, "br": true,
	"figure": true, "figcaption": true, "b": true, "i": true, "code": true, "pre": true,
	"details": true, "summary": true,
}

// Quality is the result of scoring a piece of HTML.
type Quality struct {
	Score           int      `json:"score"`
	WordCount       int      `json:"word_count"`
	Inconsistencies int      `json:"inconsistencies"`
	Findings        []string `json:"findings"`
}

// Score rates HTML from 0 to 100 on structure, organization, links and
// formatting consistency.
func Score(html string) Quality {
	q := Quality{}
	add := func(points int, finding string) {
		q.Score += points
		q.Findings = append(q.Findings, finding)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return q
	}
	body := doc.Find("body")

	if body.Find("h1, h2").Length() > 0 {
		add(pointsHeadings, "Has proper headings")
	}
	if body.Find("p").Length() > 0 {
		add(pointsParagraphs, "Has paragraph structure")
	}
	if onlySemantic(body) {
		add(pointsSemantic, "Uses semantic HTML")
	}

	q.WordCount = len(strings.Fields(tagRE.ReplaceAllString(html, " ")))
	if q.WordCount > minWordsForLength {
		add(pointsLength, "Sufficient content length")
	}
	if body.Find("ul, ol").Length() > 0 {
		add(pointsLists, "Has organized lists")
	}
	if body.Find("blockquote").Length() > 0 {
		add(pointsBlockquote, "Has blockquotes")
	}

	links := body.Find("a")
	if links.Length() > 0 {
		add(pointsLinks, "Has links")
		if links.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("target", "") == "_blank"
		}).Length() > 0 {
			add(pointsLinkTarget, "Proper link attributes")
		}
	}
	if body.Find("img").Length() > 0 {
		add(pointsImages, "Has images")
	}
	if body.Find("[class]").Length() > 0 {
		add(pointsClasses, "Has CSS classes")
	}
	if body.Find("script").Length() == 0 && !strings.Contains(strings.ToLower(html), "javascript:") {
		add(pointsSafe, "Security compliant")
	}

	q.Inconsistencies = countInconsistencies(body, html)
	q.Score += max(0, pointsConsistency-inconsistencyCost*q.Inconsistencies)
	if q.Inconsistencies == 0 {
		q.Findings = append(q.Findings, "Consistent formatting")
	}

	q.Score = min(q.Score, maxScore)
	return q
}

func onlySemantic(body *goquery.Selection) bool {
	ok := true
	body.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ok = semanticTags[goquery.NodeName(s)]
		return ok
	})
	return ok
}

func countInconsistencies(body *goquery.Selection, html string) int {
	n := 0
	if body.Find("h1").Length() > 1 {
		n++
	}
	if doubleBreakRE.MatchString(html) {
		n++
	}
	if wideSpaceRE.MatchString(html) {
		n++
	}
	if emptyParaRE.MatchString(html) {
		n++
	}
	return n
}

// Improvements lists the changes a rewrite made, judged from the before and
// after HTML and their scores.
func Improvements(before, after string, beforeQ, afterQ Quality) []string {
	var out []string
	if before != after {
		out = append(out, "Content formatting standardized")
	}
	if countTag(before, "h1, h2, h3, h4, h5, h6") != countTag(after, "h1, h2, h3, h4, h5, h6") {
		out = append(out, "Heading structure optimized")
	}
	if !strings.Contains(before, `target="_blank"`) && strings.Contains(after, `target="_blank"`) {
		out = append(out, "External links standardized")
	}
	if wideSpaceRE.MatchString(before) && !wideSpaceRE.MatchString(after) {
		out = append(out, "Spacing normalized")
	}
	if strings.Contains(before, "<img") && strings.Contains(after, "post-figure") {
		out = append(out, "Images enhanced")
	}
	if beforeQ.Inconsistencies > afterQ.Inconsistencies {
		out = append(out, "Formatting inconsistencies removed")
	}
	if len(out) == 0 {
		out = append(out, "Content validated and confirmed to standards")
	}
	return out
}

func countTag(html, selector string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	return doc.Find(selector).Length()
}
