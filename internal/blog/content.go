package blog

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Formatter turns stored post content into publishable HTML.
type Formatter interface {
	Format(content, title string) string
}

const emptyPostHTML = `<p class="empty">This post has no content yet.</p>`

// ContentToHTML picks the best available body for a post: the formatted
// content, the structured JSON content, a link to the external URL, or an
// empty-state paragraph.
func ContentToHTML(f Formatter, p Post) string {
	if strings.TrimSpace(p.Content) != "" {
		if f == nil {
			return p.Content
		}
		return f.Format(p.Content, p.Title)
	}
	if out := ContentJSONToHTML(p.ContentJSON); out != "" {
		return out
	}
	if u := strings.TrimSpace(p.URL); u != "" {
		esc := html.EscapeString(u)
		return fmt.Sprintf(`<p>External post: <a href="%s">%s</a></p>`, esc, esc)
	}
	return emptyPostHTML
}

// ContentJSONToHTML renders structured post content. The object may sit at
// the top level or under a "structured" or "content" key. Every string is
// escaped; invalid input renders nothing.
func ContentJSONToHTML(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var top map[string]any
	if err := json.Unmarshal(raw, &top); err != nil {
		return ""
	}
	c := top
	for _, key := range []string{"structured", "content"} {
		if nested, ok := top[key].(map[string]any); ok {
			c = nested
			break
		}
	}

	var lines []string
	for _, h := range asSlice(c["headlines"]) {
		if txt := textOf(h, "text"); txt != "" {
			lines = append(lines, "<h2>"+html.EscapeString(txt)+"</h2>")
		}
	}
	if intro := asString(c["introduction"]); intro != "" {
		lines = append(lines, "<p>"+html.EscapeString(intro)+"</p>")
	}
	for _, p := range asSlice(c["paragraphs"]) {
		if m, ok := p.(map[string]any); ok {
			if heading := asString(m["heading"]); heading != "" {
				lines = append(lines, "<h2>"+html.EscapeString(heading)+"</h2>")
			}
		}
		if txt := textOf(p, "text"); txt != "" {
			lines = append(lines, "<p>"+html.EscapeString(txt)+"</p>")
		}
	}
	if summary := asString(c["summary"]); summary != "" {
		lines = append(lines, "<h2>Summary</h2>", "<p>"+html.EscapeString(summary)+"</p>")
	}
	if conclusion := asString(c["conclusion"]); conclusion != "" {
		lines = append(lines, "<h2>Conclusion</h2>", "<p>"+html.EscapeString(conclusion)+"</p>")
	}
	if faq := asSlice(c["faq"]); len(faq) > 0 {
		lines = append(lines, `<section class="faq"><h2>FAQ</h2>`)
		for _, entry := range faq {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			q := firstString(m, "q", "question")
			if q == "" {
				continue
			}
			a := firstString(m, "a", "answer")
			item := "<details><summary>" + html.EscapeString(q) + "</summary>"
			if a != "" {
				item += "<div><p>" + html.EscapeString(a) + "</p></div>"
			}
			lines = append(lines, item+"</details>")
		}
		lines = append(lines, "</section>")
	}
	if notes := asString(c["notes"]); notes != "" {
		lines = append(lines, `<blockquote class="notes">`+html.EscapeString(notes)+"</blockquote>")
	}
	return strings.Join(lines, "\n")
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// textOf accepts either a bare string or an object carrying key.
func textOf(v any, key string) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if m, ok := v.(map[string]any); ok {
		return asString(m[key])
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}
