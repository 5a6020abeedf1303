package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/hyperifyio/jusia/internal/page"
)

var (
	pdfViewerRules = compile("#viewer", ".pdfViewer")
	textLayerSel   = cascadia.MustCompile(".textLayer")
	iframeSel      = cascadia.MustCompile("iframe[id]")
	contentRules   = compile("main", "[role=main]", "#conteudo", ".conteudo", ".content", "article")
)

// frameHints are substrings of an iframe id that mark it as a document viewer.
var frameHints = []string{"documento", "viewer", "visualizador", "frame"}

// pdfTextLayers joins the text of every PDF.js text layer, page by page, when
// the page hosts a PDF viewer. A viewer always ends the ladder, even before
// its layers have rendered.
func pdfTextLayers(doc *page.Document) (match, bool, error) {
	viewer := false
	for _, r := range pdfViewerRules {
		if doc.Find(r.sel).Length() > 0 {
			viewer = true
			break
		}
	}
	if !viewer {
		return match{}, false, nil
	}
	layers := doc.Find(textLayerSel)
	texts := make([]string, 0, layers.Length())
	layers.Each(func(_ int, layer *goquery.Selection) {
		texts = append(texts, page.TextContent(layer))
	})
	return match{text: strings.Join(texts, "\n\n")}, true, nil
}

// documentFrame reads the body of the first accessible viewer iframe.
func documentFrame(doc *page.Document) (match, bool, error) {
	frames := doc.Find(iframeSel)
	for i := range frames.Nodes {
		frame := frames.Eq(i)
		id, _ := frame.Attr("id")
		if !containsAny(strings.ToLower(id), frameHints) {
			continue
		}
		inner, err := doc.Frame(frame)
		if errors.Is(err, page.ErrFrameInaccessible) {
			continue
		}
		if err != nil {
			return match{}, false, err
		}
		body := inner.Body()
		text := page.RenderedText(body)
		if strings.TrimSpace(text) == "" {
			continue
		}
		h, _ := body.Html()
		return match{text: text, html: h, selector: "iframe#" + id}, true, nil
	}
	return match{}, false, nil
}

// contentContainer uses the first generic landmark or content class present.
func contentContainer(doc *page.Document) (match, bool, error) {
	for _, r := range contentRules {
		el := doc.Find(r.sel).First()
		if el.Length() == 0 {
			continue
		}
		text := page.RenderedText(el)
		if strings.TrimSpace(text) == "" {
			continue
		}
		h, _ := goquery.OuterHtml(el)
		return match{text: text, html: h, selector: r.css}, true, nil
	}
	return match{}, false, nil
}

// pageBody is the last resort: the rendered text of the whole page.
func pageBody(doc *page.Document) (match, bool, error) {
	body := doc.Body()
	h, _ := body.Html()
	return match{text: page.RenderedText(body), html: h, selector: "body"}, true, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
