// markdown.go
package main

import (
	"fmt"
	"regexp"
	"strings"
)

// captionMaxLen is the cutoff under which a centered paragraph is treated
// as an image caption.
const captionMaxLen = 80

var spaceRunRe = regexp.MustCompile(`[ \t]+`)

// RenderMarkdown converts the (placeholder-rewritten) content tree to
// Markdown body text. Rendering is a pure recursive walk; identical trees
// produce byte-identical output.
func RenderMarkdown(tree *ContentNode) string {
	r := &markdownRenderer{}
	for _, child := range tree.Children {
		r.convertBlock(child, "")
	}
	return r.finish()
}

type markdownRenderer struct {
	lines []string
}

func (r *markdownRenderer) emit(line string) {
	r.lines = append(r.lines, strings.TrimRight(line, " \t"))
}

func (r *markdownRenderer) blank() {
	r.lines = append(r.lines, "")
}

// finish joins the line buffer, collapsing runs of blank lines to one.
func (r *markdownRenderer) finish() string {
	raw := strings.Split(strings.Join(r.lines, "\n"), "\n")
	var cleaned []string
	blanks := 0
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			blanks++
			if blanks <= 1 {
				cleaned = append(cleaned, "")
			}
		} else {
			blanks = 0
			cleaned = append(cleaned, strings.TrimRight(l, " \t"))
		}
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n")) + "\n"
}

// convertInline flattens a node to inline Markdown text.
func (r *markdownRenderer) convertInline(n *ContentNode) string {
	switch n.Kind {
	case KindText:
		return n.Text

	case KindBreak:
		return "\n"

	case KindBold:
		inner := strings.TrimSpace(r.inlineChildren(n))
		if inner == "" {
			return ""
		}
		return "**" + inner + "**"

	case KindItalic:
		inner := strings.TrimSpace(r.inlineChildren(n))
		if inner == "" {
			return ""
		}
		return "*" + inner + "*"

	case KindCode:
		inner := strings.Trim(r.inlineChildren(n), "\n")
		inner = strings.ReplaceAll(inner, "`", "\\`")
		if inner == "" {
			return ""
		}
		return "`" + inner + "`"

	case KindLink:
		href := strings.TrimSpace(n.Attr("href"))
		text := collapseWhitespace(r.inlineChildren(n))
		if text == "" {
			text = href
		}
		if href == "" {
			return text
		}
		return fmt.Sprintf("[%s](%s)", text, href)

	case KindSpan:
		style := strings.ToLower(n.Attr("style"))
		inner := r.inlineChildren(n)
		if strings.Contains(style, "font-weight") && hasBoldWeight(style) {
			if t := strings.TrimSpace(inner); t != "" {
				return "**" + t + "**"
			}
		}
		if strings.Contains(style, "font-style") && strings.Contains(style, "italic") {
			if t := strings.TrimSpace(inner); t != "" {
				return "*" + t + "*"
			}
		}
		// All other inline styling is discarded; no HTML passthrough.
		return inner

	case KindPlaceholder:
		return "\n\n" + placeholderMarkdown(n) + "\n\n"

	default:
		return r.inlineChildren(n)
	}
}

func (r *markdownRenderer) inlineChildren(n *ContentNode) string {
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(r.convertInline(c))
	}
	return sb.String()
}

func hasBoldWeight(style string) bool {
	for _, marker := range []string{"bold", "700", "800", "900"} {
		if strings.Contains(style, marker) {
			return true
		}
	}
	return false
}

func placeholderMarkdown(n *ContentNode) string {
	src := strings.TrimSpace(n.Attr("src"))
	alt := strings.TrimSpace(n.Attr("alt"))
	return fmt.Sprintf("![%s](%s)", alt, src)
}

// convertBlock renders a block-level node into the line buffer.
func (r *markdownRenderer) convertBlock(n *ContentNode, listPrefix string) {
	switch n.Kind {
	case KindText:
		if txt := collapseWhitespace(n.Text); txt != "" {
			r.emit(txt)
			r.blank()
		}

	case KindH1, KindH2, KindH3:
		marker := map[NodeKind]string{KindH1: "#", KindH2: "##", KindH3: "###"}[n.Kind]
		if text := collapseWhitespace(r.inlineChildren(n)); text != "" {
			r.emit(marker + " " + text)
			r.blank()
		}

	case KindRule:
		r.emit("---")
		r.blank()

	case KindBlockquote:
		inner := r.inlineChildren(n)
		emitted := false
		for _, l := range strings.Split(inner, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				r.emit("> " + l)
				emitted = true
			}
		}
		if emitted {
			r.blank()
		}

	case KindUnorderedList, KindOrderedList:
		idx := 1
		for _, c := range n.Children {
			if c.Kind != KindListItem {
				continue
			}
			prefix := "- "
			if n.Kind == KindOrderedList {
				prefix = fmt.Sprintf("%d. ", idx)
			}
			r.convertBlock(c, prefix)
			idx++
		}
		r.blank()

	case KindListItem:
		r.convertListItem(n, listPrefix)

	case KindPre:
		r.convertPre(n)

	case KindParagraph, KindDiv, KindSection, KindContainer:
		r.convertContainer(n)

	case KindPlaceholder:
		r.emit(placeholderMarkdown(n))
		r.blank()

	default:
		// Inline node in a block context.
		if txt := collapseWhitespace(r.convertInline(n)); txt != "" {
			r.emit(txt)
			r.blank()
		}
	}
}

func (r *markdownRenderer) convertListItem(n *ContentNode, listPrefix string) {
	// First line: immediate inline children only.
	var parts []string
	for _, c := range n.Children {
		if c.IsBlock() {
			continue
		}
		parts = append(parts, r.convertInline(c))
	}
	if first := collapseWhitespace(strings.Join(parts, "")); first != "" {
		r.emit(listPrefix + first)
	}

	// Then nested blocks. Nested lists are indented two spaces relative to
	// the parent item.
	for _, c := range n.Children {
		if !c.IsBlock() {
			continue
		}
		if c.Kind == KindUnorderedList || c.Kind == KindOrderedList {
			before := len(r.lines)
			r.convertBlock(c, "")
			for j := before; j < len(r.lines); j++ {
				if strings.TrimSpace(r.lines[j]) != "" {
					r.lines[j] = "  " + r.lines[j]
				}
			}
		} else {
			r.convertBlock(c, "")
		}
	}
}

func (r *markdownRenderer) convertPre(n *ContentNode) {
	code := n.PlainText()
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")
	code = strings.Trim(code, "\n")
	if code == "" {
		return
	}
	r.emit("```" + DetectCodeLanguage(code))
	for _, line := range strings.Split(code, "\n") {
		r.emit(line)
	}
	r.emit("```")
	r.blank()
}

// convertContainer handles paragraph-like generic containers: standalone
// figures, captions, mixed inline-and-block content, and plain paragraphs.
func (r *markdownRenderer) convertContainer(n *ContentNode) {
	// A container whose only meaningful child is an image renders as a
	// standalone figure with no paragraph wrapper.
	meaningful := meaningfulChildren(n)
	if len(meaningful) == 1 && meaningful[0].Kind == KindPlaceholder {
		r.emit(placeholderMarkdown(meaningful[0]))
		r.blank()
		return
	}

	if isCaption(n) {
		if text := collapseWhitespace(r.inlineChildren(n)); text != "" {
			r.emit("*" + text + "*")
			r.blank()
		}
		return
	}

	hasBlockChildren := false
	for _, c := range n.Children {
		if c.IsBlock() {
			hasBlockChildren = true
			break
		}
	}

	if hasBlockChildren {
		// Mixed content: flush accumulated inline text as its own
		// paragraph before each nested block child, in encounter order.
		var inlineBuf []string
		flush := func() {
			if len(inlineBuf) == 0 {
				return
			}
			r.emitParagraphText(strings.Join(inlineBuf, ""))
			inlineBuf = nil
		}
		for _, c := range n.Children {
			if c.IsBlock() {
				flush()
				r.convertBlock(c, "")
			} else {
				inlineBuf = append(inlineBuf, r.convertInline(c))
			}
		}
		flush()
		return
	}

	r.emitParagraphText(r.inlineChildren(n))
}

// emitParagraphText normalizes and emits paragraph text, preserving
// intentional line breaks from <br>.
func (r *markdownRenderer) emitParagraphText(inner string) {
	inner = strings.ReplaceAll(inner, "\u00a0", " ") // nbsp
	inner = spaceRunRe.ReplaceAllString(inner, " ")
	var kept []string
	for _, l := range strings.Split(inner, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > 0 {
		r.emit(strings.Join(kept, "\n"))
		r.blank()
	}
}

func meaningfulChildren(n *ContentNode) []*ContentNode {
	var out []*ContentNode
	for _, c := range n.Children {
		if c.Kind == KindText && strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// isCaption applies the caption heuristic: short text that is centered,
// wrapped in a centered or font-sized span, or carries a caption-like
// class renders as italic instead of a plain paragraph.
func isCaption(n *ContentNode) bool {
	if n.Kind != KindParagraph && n.Kind != KindSection {
		return false
	}

	text := collapseWhitespace(n.PlainText())
	if text == "" || len([]rune(text)) > captionMaxLen {
		return false
	}

	style := strings.ToLower(n.Attr("style"))
	if strings.Contains(style, "text-align") && strings.Contains(style, "center") {
		return true
	}

	if span := firstSpan(n); span != nil {
		s := strings.ToLower(span.Attr("style"))
		if strings.Contains(s, "text-align") && strings.Contains(s, "center") {
			return true
		}
		if strings.Contains(s, "font-size") {
			return true
		}
	}

	return strings.Contains(strings.ToLower(n.Attr("class")), "caption")
}

func firstSpan(n *ContentNode) *ContentNode {
	for _, c := range n.Children {
		if c.Kind == KindSpan {
			return c
		}
		if found := firstSpan(c); found != nil {
			return found
		}
	}
	return nil
}
