package formatter

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockQuote
	blockOrdered
	blockUnordered
	blockCode
)

type block struct {
	kind  blockKind
	level int
	text  string
	items []string
}

var (
	headingLineRE = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t#]*$`)
	orderedLineRE = regexp.MustCompile(`^\d+[.)][ \t]+(.+)$`)
	bulletLineRE  = regexp.MustCompile(`^[-*•+][ \t]+(.+)$`)
	quoteLineRE   = regexp.MustCompile(`^>[ \t]?(.*)$`)
)

// parseSections splits plain text into blocks.
func parseSections(s string) []block {
	var (
		blocks []block
		para   []string
		cur    *block
	)
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, block{kind: blockParagraph, text: strings.Join(para, " ")})
			para = nil
		}
	}
	flushList := func() {
		if cur != nil {
			blocks = append(blocks, *cur)
			cur = nil
		}
	}

	lines := strings.Split(s, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
			flushPara()
			flushList()
		case strings.HasPrefix(line, "```"):
			flushPara()
			flushList()
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				code = append(code, lines[i])
			}
			blocks = append(blocks, block{kind: blockCode, text: strings.Join(code, "\n")})
		case headingLineRE.MatchString(line):
			flushPara()
			flushList()
			m := headingLineRE.FindStringSubmatch(line)
			level := 2
			if len(m[1]) >= 3 {
				level = 3
			}
			blocks = append(blocks, block{kind: blockHeading, level: level, text: m[2]})
		case orderedLineRE.MatchString(line):
			flushPara()
			cur = appendItem(cur, &blocks, blockOrdered, orderedLineRE.FindStringSubmatch(line)[1])
		case bulletLineRE.MatchString(line):
			flushPara()
			cur = appendItem(cur, &blocks, blockUnordered, bulletLineRE.FindStringSubmatch(line)[1])
		case quoteLineRE.MatchString(line):
			flushPara()
			text := quoteLineRE.FindStringSubmatch(line)[1]
			if cur != nil && cur.kind == blockQuote {
				cur.text = strings.TrimSpace(cur.text + " " + text)
				continue
			}
			flushList()
			cur = &block{kind: blockQuote, text: text}
		default:
			flushList()
			para = append(para, line)
		}
	}
	flushPara()
	flushList()

	return promoteShortParagraphs(dedupeBlocks(blocks))
}

// appendItem adds an item to the open list, starting a new list when the
// kind changes.
func appendItem(cur *block, blocks *[]block, kind blockKind, item string) *block {
	if cur != nil && cur.kind != kind {
		*blocks = append(*blocks, *cur)
		cur = nil
	}
	if cur == nil {
		cur = &block{kind: kind}
	}
	cur.items = append(cur.items, item)
	return cur
}

const dedupeKeyLimit = 240

func blockKey(b block) string {
	text := b.text
	if len(b.items) > 0 {
		text = strings.Join(b.items, "|")
	}
	key := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if len(key) > dedupeKeyLimit {
		key = key[:dedupeKeyLimit]
	}
	return key
}

// dedupeBlocks drops blocks that repeat the block right before them.
func dedupeBlocks(blocks []block) []block {
	out := blocks[:0:0]
	prev := ""
	for _, b := range blocks {
		key := blockKey(b)
		if key != "" && key == prev {
			continue
		}
		prev = key
		out = append(out, b)
	}
	return out
}

// promoteShortParagraphs turns label-like paragraphs into headings when real
// content follows them.
func promoteShortParagraphs(blocks []block) []block {
	for i := range blocks {
		if blocks[i].kind != blockParagraph || i+1 >= len(blocks) {
			continue
		}
		if blocks[i+1].kind == blockHeading {
			continue
		}
		if looksLikeHeading(blocks[i].text) {
			blocks[i].kind = blockHeading
			blocks[i].level = 2
			blocks[i].text = strings.TrimSuffix(blocks[i].text, ":")
		}
	}
	return blocks
}

func looksLikeHeading(text string) bool {
	text = strings.TrimSpace(text)
	words := strings.Fields(text)
	if text == "" || len(text) > 120 || len(words) > 8 {
		return false
	}
	if strings.HasSuffix(text, ":") || strings.HasSuffix(text, "?") {
		return true
	}
	if strings.ContainsAny(text, ".!") {
		return false
	}
	letters, upper := 0, 0
	capitalized := 0
	for _, w := range words {
		r := []rune(w)
		if unicode.IsUpper(r[0]) {
			capitalized++
		}
		for _, c := range r {
			if unicode.IsLetter(c) {
				letters++
				if unicode.IsUpper(c) {
					upper++
				}
			}
		}
	}
	if letters > 3 && upper == letters {
		return true
	}
	return len(words) > 1 && float64(capitalized)/float64(len(words)) > 0.6
}

func renderBlocks(blocks []block) string {
	var b strings.Builder
	for _, blk := range blocks {
		switch blk.kind {
		case blockHeading:
			tag := "h2"
			if blk.level == 3 {
				tag = "h3"
			}
			b.WriteString("<" + tag + ">" + formatInline(blk.text) + "</" + tag + ">\n")
		case blockQuote:
			b.WriteString("<blockquote><p>" + formatInline(blk.text) + "</p></blockquote>\n")
		case blockOrdered, blockUnordered:
			tag := "ul"
			if blk.kind == blockOrdered {
				tag = "ol"
			}
			b.WriteString("<" + tag + ">")
			for _, item := range blk.items {
				b.WriteString("<li>" + formatInline(item) + "</li>")
			}
			b.WriteString("</" + tag + ">\n")
		case blockCode:
			b.WriteString("<pre><code>" + html.EscapeString(blk.text) + "</code></pre>\n")
		default:
			b.WriteString("<p>" + formatInline(blk.text) + "</p>\n")
		}
	}
	return b.String()
}
