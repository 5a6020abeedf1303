// Package docid finds PJe document identifiers on a page: numeric tokens in
// document links, element ids, headings and the page header.
package docid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/hyperifyio/jusia/internal/page"
)

// ErrScan wraps any failure raised while walking the document tree.
var ErrScan = errors.New("document scan failed")

// Reference is one document identifier found on a page.
type Reference struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Context   string `json:"context,omitempty"`
	IsCurrent bool   `json:"isCurrent,omitempty"`
}

const (
	contextLen = 100
	titleLen   = 120
)

var (
	longToken = regexp.MustCompile(`\d{8,}`)
	docToken  = regexp.MustCompile(`\b\d{8,9}\b`)
)

// openActions are the click handlers PJe attaches to document links.
var openActions = []string{"abrirDocumento", "visualizarDocumento", "exibirDocumento", "openDocument"}

var (
	onclickSel   = cascadia.MustCompile("a[onclick]")
	docHrefSel   = cascadia.MustCompile(`a[href*="verDocumento"], a[href*="idDocumento"]`)
	docIDSel     = cascadia.MustCompile(`[id*="documento"]`)
	numberBlocks = cascadia.MustCompile("h1, h2, h3, h4, h5, h6, .numeroProcesso, .numero-processo, #numeroProcesso")
	headerSel    = cascadia.MustCompile("#cabecalho, .cabecalho, #pageHeader, .header-documento")
)

// Scan returns the unique document references found in doc, in discovery
// order. The first detection of an id wins; later detections of the same id
// are dropped along with their context and current flag.
func Scan(doc *page.Document) (refs []Reference, err error) {
	defer func() {
		if p := recover(); p != nil {
			refs, err = nil, fmt.Errorf("%w: %v", ErrScan, p)
		}
	}()
	if doc == nil {
		return nil, fmt.Errorf("%w: no document loaded", ErrScan)
	}

	c := &collector{seen: make(map[string]bool)}
	c.links(doc)
	c.elementIDs(doc)
	c.numberBlocks(doc)
	c.header(doc)
	if len(c.refs) == 0 {
		c.fullText(doc)
	}
	if c.refs == nil {
		return []Reference{}, nil
	}
	return c.refs, nil
}

// Current returns the reference flagged as the document being viewed.
func Current(refs []Reference) (Reference, bool) {
	for _, r := range refs {
		if r.IsCurrent {
			return r, true
		}
	}
	return Reference{}, false
}

type collector struct {
	refs []Reference
	seen map[string]bool
}

func (c *collector) add(r Reference) {
	if r.ID == "" || c.seen[r.ID] {
		return
	}
	c.seen[r.ID] = true
	if r.Title == "" {
		r.Title = placeholder(r.ID)
	}
	c.refs = append(c.refs, r)
}

func (c *collector) links(doc *page.Document) {
	doc.Find(onclickSel).Each(func(_ int, a *goquery.Selection) {
		handler, _ := a.Attr("onclick")
		if !mentionsAny(handler, openActions) {
			return
		}
		if id := longToken.FindString(handler); id != "" {
			c.add(Reference{ID: id, Title: title(a)})
		}
	})
	doc.Find(docHrefSel).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if id := longToken.FindString(href); id != "" {
			c.add(Reference{ID: id, Title: title(a)})
		}
	})
}

func (c *collector) elementIDs(doc *page.Document) {
	doc.Find(docIDSel).Each(func(_ int, el *goquery.Selection) {
		attr, _ := el.Attr("id")
		if id := longToken.FindString(attr); id != "" {
			c.add(Reference{ID: id, Title: title(el)})
		}
	})
}

func (c *collector) numberBlocks(doc *page.Document) {
	doc.Find(numberBlocks).Each(func(_ int, el *goquery.Selection) {
		c.tokens(collapse(page.RenderedText(el)))
	})
}

func (c *collector) header(doc *page.Document) {
	el := doc.Find(headerSel).First()
	if el.Length() == 0 {
		return
	}
	text := collapse(page.RenderedText(el))
	loc := docToken.FindStringIndex(text)
	if loc == nil {
		return
	}
	c.add(Reference{
		ID:        text[loc[0]:loc[1]],
		Context:   around(text, loc[0], loc[1]),
		IsCurrent: true,
	})
}

func (c *collector) fullText(doc *page.Document) {
	c.tokens(collapse(page.RenderedText(doc.Body())))
}

// tokens adds every 8 or 9 digit token of text with its surrounding context.
func (c *collector) tokens(text string) {
	for _, loc := range docToken.FindAllStringIndex(text, -1) {
		c.add(Reference{ID: text[loc[0]:loc[1]], Context: around(text, loc[0], loc[1])})
	}
}

func placeholder(id string) string {
	return "Documento " + id
}

// title is the element's visible text, shortened for display.
func title(sel *goquery.Selection) string {
	t := collapse(page.RenderedText(sel))
	if utf8.RuneCountInString(t) <= titleLen {
		return t
	}
	r := []rune(t)
	return strings.TrimSpace(string(r[:titleLen-1])) + "…"
}

// around returns at most contextLen runes of text centred on text[start:end].
func around(text string, start, end int) string {
	if utf8.RuneCountInString(text) <= contextLen {
		return text
	}
	match := text[start:end]
	before := []rune(text[:start])
	after := []rune(text[end:])
	room := contextLen - utf8.RuneCountInString(match)
	if room <= 0 {
		return match
	}
	lead := min(room/2, len(before))
	trail := min(room-lead, len(after))
	lead = min(room-trail, len(before))
	return strings.TrimSpace(string(before[len(before)-lead:]) + match + string(after[:trail]))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func mentionsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
