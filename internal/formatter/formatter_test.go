package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessEmptyInputIsReturnedAsIs(t *testing.T) {
	t.Parallel()

	p := New()
	require.Equal(t, "", p.Format("", "Title"))
	require.Equal(t, "   ", p.Format("   ", ""))
}

func TestProcessPlainTextGetsParagraphs(t *testing.T) {
	t.Parallel()

	out := New().Process("First paragraph here with several words.\n\nSecond paragraph follows here.", "")

	require.False(t, out.Fallback)
	require.Contains(t, out.HTML, "<p>First paragraph here with several words.</p>")
	require.Contains(t, out.HTML, "<p>Second paragraph follows here.</p>")
	require.Contains(t, out.Applied, "markup")
}

func TestProcessMarkdownWithFrontmatterAndDuplicateTitle(t *testing.T) {
	t.Parallel()

	input := "---\ntitle: Ultimate Guide to Link Building\nauthor: bot\n---\n" +
		"# Ultimate Guide to Link Building\n\n" +
		"Link building is **important** for SEO.\n\n" +
		"## Why It Matters\n\nBecause rankings."

	out := New().Process(input, "")

	require.False(t, out.Fallback)
	require.NotContains(t, out.HTML, "Ultimate Guide to Link Building")
	require.NotContains(t, out.HTML, "author:")
	require.Contains(t, out.HTML, "<strong>important</strong>")
	require.Contains(t, out.HTML, "<h2>Why It Matters</h2>")
}

func TestProcessRemovesTruncatedTitleCopy(t *testing.T) {
	t.Parallel()

	title := "How Guest Posting Builds Authority for Small Business Websites"
	input := "<h1>How Guest Posting Builds Authority for Small Business Websites in 2025</h1>" +
		"<p>Guest posting remains a reliable channel.</p>"

	out := New().Format(input, title)

	require.NotContains(t, out, "<h1>")
	require.NotContains(t, out, "in 2025")
	require.Contains(t, out, "Guest posting remains a reliable channel.")
}

func TestProcessDecodesEscapedMarkup(t *testing.T) {
	t.Parallel()

	p := New()

	out := p.Format("&lt;p&gt;Hello there, friend.&lt;/p&gt;&lt;p&gt;Second line here.&lt;/p&gt;", "")
	require.Contains(t, out, "<p>Hello there, friend.</p>")
	require.NotContains(t, out, "&lt;")

	out = p.Format("&amp;lt;p&amp;gt;Backlinks still matter in 2025&amp;lt;/p&amp;gt;", "")
	require.Contains(t, out, "<p>Backlinks still matter in 2025</p>")
	require.NotContains(t, out, "&amp;")
}

func TestProcessNormalizesLinks(t *testing.T) {
	t.Parallel()

	input := `<p>Visit <a href="example.com" rel="nofollow ugc" onclick="steal()">our partner</a> and <a href="/about">about</a>.</p>`

	out := New().Format(input, "")

	require.Contains(t, out, `href="https://example.com"`)
	require.Contains(t, out, `target="_blank"`)
	require.Contains(t, out, `rel="noopener noreferrer"`)
	require.Contains(t, out, `<a href="/about">about</a>`)
	require.NotContains(t, out, "nofollow")
	require.NotContains(t, out, "onclick")
}

func TestProcessStripsScripts(t *testing.T) {
	t.Parallel()

	out := New().Format(`<p>Safe text stays here.</p><script>alert(1)</script>`, "")

	require.Contains(t, out, "Safe text stays here.")
	require.NotContains(t, out, "alert")
	require.NotContains(t, out, "<script")
}

func TestProcessFallsBackWhenEverythingIsRemoved(t *testing.T) {
	t.Parallel()

	input := "---\ntitle: Only Frontmatter\n---\n"
	out := New().Process(input, "")

	require.True(t, out.Fallback)
	require.Equal(t, input, out.HTML)
}

func TestProcessFallsBackWhenMostTextIsLost(t *testing.T) {
	t.Parallel()

	input := "<h2>What is SEO? " + strings.Repeat("Search engines reward useful pages. ", 3) + "</h2><p>Body.</p>"
	out := New().Process(input, "")

	require.True(t, out.Fallback)
	require.Equal(t, input, out.HTML)
	require.Empty(t, out.Applied)
}

func TestStageSkipsPanickingStage(t *testing.T) {
	t.Parallel()

	run := &pipelineRun{processor: New(), text: "original"}
	run.stage("boom", func(string) string { panic("stage failure") })

	require.Equal(t, "original", run.text)
	require.NotContains(t, run.applied, "boom")

	run.stage("upper", strings.ToUpper)
	require.Equal(t, "ORIGINAL", run.text)
	require.Equal(t, []string{"upper"}, run.applied)
}

func TestStageRecordsOnlyChangingStages(t *testing.T) {
	t.Parallel()

	run := &pipelineRun{processor: New(), text: "same"}
	run.stage("noop", func(s string) string { return s })

	require.Equal(t, "same", run.text)
	require.Empty(t, run.applied)
}

func TestProcessNeverReturnsEmptyForNonEmptyInput(t *testing.T) {
	t.Parallel()

	p := New()
	for _, input := range []string{"<<<>>>", "<p></p>", "**", "#", "<div><span></span></div>", "---"} {
		require.NotEmpty(t, strings.TrimSpace(p.Format(input, "")), "input %q", input)
	}
}

func TestProcessIsIdempotentOnItsOutput(t *testing.T) {
	t.Parallel()

	p := New()
	samples := []struct {
		content string
		title   string
	}{
		{content: "First paragraph here with several words.\n\nSecond paragraph follows here."},
		{content: `<p>Visit <a href="example.com" rel="nofollow">our partner</a> and <a href="/about">about</a>.</p>`},
		{
			content: "# Ultimate Guide\n\nLink building is **important** for SEO.\n\n## Why It Matters\n\nBecause rankings.",
			title:   "Ultimate Guide",
		},
	}
	for _, sample := range samples {
		once := p.Format(sample.content, sample.title)
		twice := p.Format(once, sample.title)
		require.Equal(t, once, twice, "content %q", sample.content)
	}
}

func TestProcessLimitsHeadingToFirstSentence(t *testing.T) {
	t.Parallel()

	out := New().Format("<h2>This is the first sentence. And here is a second one.</h2><p>Body text.</p>", "")

	require.Contains(t, out, "<h2>This is the first sentence.</h2>")
	require.Equal(t, out, New().Format(out, ""))
}

func TestProcessFlattensDeepHeadings(t *testing.T) {
	t.Parallel()

	out := New().Format("<h1>Main Point</h1><h4>Detail</h4><p>Body text.</p>", "Some Title")

	require.NotContains(t, out, "<h1>")
	require.NotContains(t, out, "<h4>")
	require.Contains(t, out, "<h2>Main Point</h2>")
	require.Contains(t, out, "<h2>Detail</h2>")
}

func TestProcessPlainTextSections(t *testing.T) {
	t.Parallel()

	input := "Key Benefits:\n\nImproves rankings quickly for most sites.\n\n• Faster indexing\n• Better rankings"

	out := New().Format(input, "")

	require.Contains(t, out, "<h2>Key Benefits</h2>")
	require.Contains(t, out, "<ul><li>Faster indexing</li><li>Better rankings</li></ul>")
}

func TestProcessDropsAdjacentDuplicateBlocks(t *testing.T) {
	t.Parallel()

	out := New().Format("Same paragraph text here.\n\nSame paragraph text here.\n\nDifferent one here.", "")

	require.Equal(t, 1, strings.Count(out, "Same paragraph text here."))
	require.Contains(t, out, "Different one here.")
}

func TestProcessEnhancesImagesAndDropsCredits(t *testing.T) {
	t.Parallel()

	input := `<p><img src="https://cdn.example.com/images/link-building-tips.jpg"></p>` +
		`<p>Photo by Jane Doe on Unsplash</p><p>Body copy stays.</p>`

	out := New().Format(input, "")

	require.Contains(t, out, `alt="Link Building Tips"`)
	require.Contains(t, out, `loading="lazy"`)
	require.Contains(t, out, `<figure class="post-figure">`)
	require.NotContains(t, out, "Unsplash")
	require.Contains(t, out, "Body copy stays.")
}

func TestProcessRemovesAuthorNotesAndLabels(t *testing.T) {
	t.Parallel()

	p := New()

	out := p.Format("## Intro\n\nMain body text here.\n\n---\n\nIn conclusion, we covered everything.", "")
	require.Contains(t, out, "Main body text here.")
	require.NotContains(t, out, "In conclusion")

	out = p.Format("Hook Introduction: Welcome to the guide.\n\nCall to Action: Contact us today.", "")
	require.Contains(t, out, "Welcome to the guide.")
	require.Contains(t, out, "Contact us today.")
	require.NotContains(t, out, "Hook Introduction")
	require.NotContains(t, out, "Call to Action")
}

func TestProcessRepairsSplitBold(t *testing.T) {
	t.Parallel()

	out := New().Format("**E**nhanced SEO Performance: better rankings over time.", "")

	require.Contains(t, out, "<strong>Enhanced SEO Performance:</strong>")
}
