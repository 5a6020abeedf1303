package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// RenderedText approximates a browser's innerText for the selection: text of
// script-like elements is dropped and block elements start on a new line,
// with a blank line after paragraphs and headings.
func RenderedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(&b, n, false)
	}
	return b.String()
}

// TextContent is the DOM textContent of the selection: every descendant text
// node concatenated, with no layout applied.
func TextContent(sel *goquery.Selection) string {
	return sel.Text()
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		if isHidden(n) {
			return
		}
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "template", "head", "iframe", "object":
			return
		case "pre", "textarea":
			inPre = true
			b.WriteString("\n")
		case "br":
			b.WriteString("\n")
		case "p", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		case "div", "section", "article", "main", "header", "footer", "nav", "aside",
			"li", "ul", "ol", "table", "tr", "blockquote", "form", "fieldset", "dl", "dt", "dd":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString("\t")
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.ReplaceAll(data, "\n", " ")
			data = strings.ReplaceAll(data, "\r", " ")
			data = strings.ReplaceAll(data, "\t", " ")
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		case "div", "section", "article", "main", "header", "footer", "li", "tr", "pre", "textarea", "blockquote", "table":
			b.WriteString("\n")
		}
	}
}

// isHidden reports elements a browser would not render at all.
func isHidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(a.Val), "true") {
				return true
			}
		case "style":
			v := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
			if strings.Contains(v, "display:none") {
				return true
			}
		}
	}
	return false
}
