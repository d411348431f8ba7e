package provider

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const defaultTone = "Professional and engaging"

// BuildArticlePrompt renders the article generation prompt.
func BuildArticlePrompt(req TextRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an article about %q with the following sections:\n\n", req.Title)
	for _, s := range req.Sections {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	tone := strings.TrimSpace(req.TextPrompt)
	if tone == "" {
		tone = defaultTone
	}
	fmt.Fprintf(&b, "\nStyle/Tone: %s\n", tone)

	if len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "\nInclude these keywords: %s\n", strings.Join(req.Keywords, ", "))
	}

	b.WriteString("\nStart every section with a level-two markdown heading (## Section title), in the order given above.")
	return b.String()
}

// SplitSections splits generated markdown into at most n section bodies.
// Level-two headings, ATX or setext, delimit sections. Text before the first
// heading is kept at the top of the first section. Without any headings the
// text is split on blank lines.
func SplitSections(markdown string, n int) []string {
	if n <= 0 {
		return nil
	}
	src := []byte(strings.TrimSpace(markdown))
	if len(src) == 0 {
		return nil
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var starts []int
	var bodies []int
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		h, ok := node.(*ast.Heading)
		if !ok || h.Level != 2 {
			continue
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			continue
		}
		first, last := lines.At(0), lines.At(lines.Len()-1)
		starts = append(starts, bytes.LastIndexByte(src[:first.Start], '\n')+1)
		end := last.Stop
		if end == 0 || src[end-1] != '\n' {
			end = lineAfter(src, end)
		}
		bodies = append(bodies, skipUnderline(src, end))
	}

	if len(starts) == 0 {
		return splitParagraphs(string(src), n)
	}

	out := make([]string, 0, len(starts))
	for i := range starts {
		end := len(src)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		out = append(out, strings.TrimSpace(string(src[bodies[i]:end])))
		if len(out) == n {
			break
		}
	}
	if pre := strings.TrimSpace(string(src[:starts[0]])); pre != "" {
		out[0] = strings.TrimSpace(pre + "\n\n" + out[0])
	}
	return out
}

// lineAfter returns the offset just past the newline that ends the line
// containing pos.
func lineAfter(src []byte, pos int) int {
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

// skipUnderline steps over a setext underline starting at pos.
func skipUnderline(src []byte, pos int) int {
	end := lineAfter(src, pos)
	line := bytes.TrimSpace(src[pos:end])
	if len(line) == 0 {
		return pos
	}
	if len(bytes.Trim(line, "-")) == 0 || len(bytes.Trim(line, "=")) == 0 {
		return end
	}
	return pos
}

func splitParagraphs(s string, n int) []string {
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out
}
