// extract.go
package main

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// contentContainerID is the id of the div WeChat wraps article bodies in.
const contentContainerID = "js_content"

// ExtractTitle extracts the article title, preferring social-media meta
// tags over the document title.
func ExtractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := strings.TrimSpace(og); t != "" {
			return t
		}
	}
	if tw, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok {
		if t := strings.TrimSpace(tw); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := collapseWhitespace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return "wechat_article"
}

// ExtractAuthor extracts the official account name.
func ExtractAuthor(doc *goquery.Document) string {
	for _, sel := range []string{"a#js_name", "#js_author_name", ".rich_media_meta_text"} {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return "Unknown"
}

// ExtractPublishTime extracts the published-at string, if present.
func ExtractPublishTime(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("em#publish_time").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find(".rich_media_meta.rich_media_meta_text").First().Text())
}

// LocateContent finds the article body container in the page HTML and
// returns it as a ContentNode tree. The structural goquery lookup is tried
// first; malformed markup falls back to a raw-text scan that counts div
// nesting depth. Returns ErrContentNotFound when neither strategy works.
func LocateContent(pageHTML string) (*ContentNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	sel := doc.Find("#" + contentContainerID)
	if sel.Length() > 0 {
		return buildContainer(sel.Get(0)), nil
	}

	fragment, err := scanContentByDepth(pageHTML)
	if err != nil {
		return nil, err
	}

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("re-parsing content fragment: %w", err)
	}
	sel = doc.Find("#" + contentContainerID)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("fragment extracted but unparseable: %w", ErrContentNotFound)
	}

	return buildContainer(sel.Get(0)), nil
}

// scanContentByDepth extracts the container div from raw text by counting
// <div>/</div> nesting. Script bodies are skipped entirely since they can
// contain unbalanced markers.
func scanContentByDepth(pageHTML string) (string, error) {
	start := strings.Index(pageHTML, `id="`+contentContainerID+`"`)
	if start < 0 {
		start = strings.Index(pageHTML, `id='`+contentContainerID+`'`)
	}
	if start < 0 {
		return "", ErrContentNotFound
	}

	openDiv := strings.LastIndex(pageHTML[:start], "<div")
	if openDiv < 0 {
		return "", fmt.Errorf("no opening <div> before container id: %w", ErrContentNotFound)
	}

	depth := 0
	i := openDiv
	for i < len(pageHTML) {
		if strings.HasPrefix(pageHTML[i:], "<script") {
			endScript := strings.Index(pageHTML[i:], "</script")
			if endScript < 0 {
				break
			}
			close := strings.IndexByte(pageHTML[i+endScript:], '>')
			if close < 0 {
				break
			}
			i += endScript + close + 1
			continue
		}

		if strings.HasPrefix(pageHTML[i:], "<div") {
			depth++
			close := strings.IndexByte(pageHTML[i:], '>')
			if close < 0 {
				break
			}
			i += close + 1
			continue
		}

		if strings.HasPrefix(pageHTML[i:], "</div") {
			depth--
			close := strings.IndexByte(pageHTML[i:], '>')
			if close < 0 {
				break
			}
			i += close + 1
			if depth == 0 {
				return pageHTML[openDiv:i], nil
			}
			continue
		}

		i++
	}

	return "", fmt.Errorf("depth scan ran off document end: %w", ErrContentNotFound)
}

// buildContainer converts the located container's children into a
// ContentNode tree, dropping the wrapper div itself.
func buildContainer(container *html.Node) *ContentNode {
	root := &ContentNode{Kind: KindContainer}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if node := buildNode(c); node != nil {
			root.Children = append(root.Children, node)
		}
	}
	return root
}

// keptAttrs are the attributes the pipeline consumes downstream: link
// targets, image sources (including lazy-load variants) and the style and
// class strings the caption heuristic inspects.
var keptAttrs = map[string]bool{
	"href": true, "src": true, "data-src": true, "data-original": true,
	"alt": true, "style": true, "class": true,
}

func buildNode(n *html.Node) *ContentNode {
	switch n.Type {
	case html.TextNode:
		return &ContentNode{Kind: KindText, Text: n.Data}
	case html.ElementNode:
		// fall through
	default:
		return nil
	}

	var kind NodeKind
	switch n.Data {
	case "script", "style", "iframe", "noscript":
		return nil
	case "h1":
		kind = KindH1
	case "h2":
		kind = KindH2
	case "h3", "h4", "h5", "h6":
		kind = KindH3
	case "p":
		kind = KindParagraph
	case "div":
		kind = KindDiv
	case "section":
		kind = KindSection
	case "ul":
		kind = KindUnorderedList
	case "ol":
		kind = KindOrderedList
	case "li":
		kind = KindListItem
	case "blockquote":
		kind = KindBlockquote
	case "pre":
		kind = KindPre
	case "strong", "b":
		kind = KindBold
	case "em", "i":
		kind = KindItalic
	case "code":
		kind = KindCode
	case "a":
		kind = KindLink
	case "img":
		kind = KindImage
	case "br":
		kind = KindBreak
	case "hr":
		kind = KindRule
	case "span":
		kind = KindSpan
	default:
		kind = KindContainer
	}

	node := &ContentNode{Kind: kind}
	for _, attr := range n.Attr {
		if keptAttrs[attr.Key] {
			node.SetAttr(attr.Key, attr.Val)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := buildNode(c); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}
