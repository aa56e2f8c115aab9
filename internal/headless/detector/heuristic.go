// Package detector decides when a fetched page needs a headless re-render
// before its links can be inspected.
package detector

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

// DefaultShortBody is the body size below which script-heavy pages are
// re-rendered.
const DefaultShortBody = 2048

// scriptSharePercent is the share of a short body taken up by <script>
// elements that marks it as client rendered.
const scriptSharePercent = 25

// appRootSelector matches the mount points of common client-side frameworks.
// Generic #root/#app containers only count while still empty.
const appRootSelector = "#__next, #__nuxt, [data-reactroot], [ng-version], [data-v-app], #root:empty, #app:empty"

// Heuristic promotes pages that look client rendered.
type Heuristic struct {
	ShortBody int
}

// NewHeuristic creates a detector. A non-positive shortBody uses
// DefaultShortBody.
func NewHeuristic(shortBody int) *Heuristic {
	if shortBody <= 0 {
		shortBody = DefaultShortBody
	}
	return &Heuristic{ShortBody: shortBody}
}

// ShouldPromote reports whether the static response should be fetched again
// with a browser. Only successful responses are considered.
func (h *Heuristic) ShouldPromote(resp verify.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return false
	}
	if doc.Find(appRootSelector).Length() > 0 {
		return true
	}
	if len(resp.Body) >= h.ShortBody {
		return false
	}
	return scriptShare(doc, len(resp.Body)) >= scriptSharePercent
}

// scriptShare is the percentage of total bytes spent inside script elements.
func scriptShare(doc *goquery.Document, total int) int {
	covered := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			covered += len(html)
		}
	})
	return covered * 100 / total
}
