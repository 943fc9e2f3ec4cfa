// node.go
package main

import "strings"

// NodeKind identifies the kind of content node.
type NodeKind int

const (
	KindText NodeKind = iota
	KindH1
	KindH2
	KindH3
	KindParagraph
	KindDiv
	KindSection
	KindUnorderedList
	KindOrderedList
	KindListItem
	KindBlockquote
	KindPre
	KindBold
	KindItalic
	KindCode
	KindLink
	KindImage
	KindPlaceholder
	KindBreak
	KindRule
	KindSpan
	KindContainer
)

// ContentNode is a node in the article content tree. Text nodes carry Text;
// element nodes carry Kind, Attrs and Children. The tree is owned by a
// single pipeline run; the image pipeline mutates it in place by replacing
// Image nodes with Placeholder nodes.
type ContentNode struct {
	Kind     NodeKind
	Text     string
	Attrs    map[string]string
	Children []*ContentNode
}

// Attr returns the named attribute or "".
func (n *ContentNode) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// SetAttr sets an attribute, allocating the map on first use.
func (n *ContentNode) SetAttr(name, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
}

// IsBlock reports whether the node renders as a block-level element.
func (n *ContentNode) IsBlock() bool {
	switch n.Kind {
	case KindH1, KindH2, KindH3, KindParagraph, KindDiv, KindSection,
		KindUnorderedList, KindOrderedList, KindBlockquote, KindPre,
		KindRule, KindPlaceholder, KindContainer:
		return true
	}
	return false
}

// PlainText flattens the subtree to its text content. Break nodes become
// newlines; all other markup is discarded.
func (n *ContentNode) PlainText() string {
	var sb strings.Builder
	n.appendPlainText(&sb)
	return sb.String()
}

func (n *ContentNode) appendPlainText(sb *strings.Builder) {
	switch n.Kind {
	case KindText:
		sb.WriteString(n.Text)
	case KindBreak:
		sb.WriteByte('\n')
	default:
		for _, c := range n.Children {
			c.appendPlainText(sb)
		}
	}
}

// walkImages visits every Image node in document order.
func (n *ContentNode) walkImages(visit func(*ContentNode)) {
	if n.Kind == KindImage {
		visit(n)
		return
	}
	for _, c := range n.Children {
		c.walkImages(visit)
	}
}

// collapseWhitespace folds runs of whitespace into single spaces and trims.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
