package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/hyperifyio/jusia/internal/page"
)

// rule is a CSS selector compiled once at package init.
type rule struct {
	css string
	sel cascadia.Selector
}

func compile(css ...string) []rule {
	out := make([]rule, 0, len(css))
	for _, c := range css {
		out = append(out, rule{css: c, sel: cascadia.MustCompile(c)})
	}
	return out
}

// containerRules are the PJe markup containers that hold a document's text,
// most specific first.
var containerRules = compile(
	"#divDocumentos",
	".documento-html",
	"#textoDocumento",
	".conteudoDocumento",
	".documento",
)

// firstContainer returns the text content of the first known document
// container that has any non-blank text, the selector that matched and the
// element. The text is returned exactly as found. A nil element means no
// container matched and the fallback ladder should run.
func firstContainer(doc *page.Document) (string, string, *goquery.Selection) {
	for _, r := range containerRules {
		el := doc.Find(r.sel).First()
		if el.Length() == 0 {
			continue
		}
		text := page.TextContent(el)
		if strings.TrimSpace(text) == "" {
			continue
		}
		return text, r.css, el
	}
	return "", "", nil
}
