package formatter

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// newPolicy mirrors a DOMPurify-style UGC profile with the attributes the
// DOM stage adds to links and images.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("article", "section", "figure", "figcaption", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^[a-z ]+$`)).OnElements("a")
	p.AllowAttrs("loading").Matching(regexp.MustCompile(`^(?:lazy|eager)$`)).OnElements("img")
	p.AllowAttrs("decoding").Matching(regexp.MustCompile(`^(?:async|sync|auto)$`)).OnElements("img")
	p.AllowAttrs("referrerpolicy").Matching(regexp.MustCompile(`^[a-z-]+$`)).OnElements("img")
	p.RequireNoFollowOnLinks(false)
	return p
}
