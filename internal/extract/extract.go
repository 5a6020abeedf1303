// Package extract locates the body text of a legal document inside a PJe
// page. Known PJe containers are tried first; when none matches, a fallback
// ladder looks for a PDF viewer, a viewer iframe, a generic content
// container and finally the whole page.
package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/jusia/internal/page"
)

// Sources name the rule that produced a Result.
const (
	SourceContainer     = "container"
	SourcePDFTextLayers = "pdf-text-layers"
	SourceFrame         = "document-frame"
	SourceContent       = "content-container"
	SourceBody          = "page-body"
)

// Result is the outcome of one extraction. On failure Err is set and Text
// carries a readable error string instead of document text.
type Result struct {
	Text     string `json:"text"`
	Source   string `json:"source,omitempty"`
	Selector string `json:"selector,omitempty"`
	// HTML is the markup of the matched element, when there was one.
	HTML string `json:"-"`
	Err  error  `json:"-"`
}

// Failed reports whether extraction raised an error.
func (r Result) Failed() bool { return r.Err != nil }

type match struct {
	text     string
	html     string
	selector string
}

type strategy struct {
	name   string
	locate func(*page.Document) (match, bool, error)
}

// ladder is tried in order; the first strategy that reports ok wins.
var ladder = []strategy{
	{SourceContainer, knownContainer},
	{SourcePDFTextLayers, pdfTextLayers},
	{SourceFrame, documentFrame},
	{SourceContent, contentContainer},
	{SourceBody, pageBody},
}

func knownContainer(doc *page.Document) (match, bool, error) {
	text, css, el := firstContainer(doc)
	if el == nil {
		return match{}, false, nil
	}
	h, _ := goquery.OuterHtml(el)
	return match{text: text, html: h, selector: css}, true, nil
}

// Locate runs the selector ladder and returns the raw, unnormalized text.
// It never panics and never returns an error directly: failures come back as
// a Result with Err set.
func Locate(doc *page.Document) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = failure(fmt.Errorf("%v", p))
		}
	}()
	if doc == nil {
		return failure(fmt.Errorf("no document loaded"))
	}
	for _, s := range ladder {
		m, ok, err := s.locate(doc)
		if err != nil {
			return failure(err)
		}
		if ok {
			return Result{Text: m.text, Source: s.name, Selector: m.selector, HTML: m.html}
		}
	}
	return Result{Source: SourceBody}
}

// FromPage locates the document text and normalizes it.
func FromPage(doc *page.Document) Result {
	res := Locate(doc)
	if res.Failed() {
		return res
	}
	res.Text = Normalize(res.Text)
	return res
}

// FromHTML parses raw HTML and extracts normalized text from it.
func FromHTML(input []byte) Result {
	doc, err := page.Parse(bytes.NewReader(input))
	if err != nil {
		return failure(err)
	}
	return FromPage(doc)
}

func failure(err error) Result {
	return Result{Text: "extraction failed: " + err.Error(), Err: err}
}
