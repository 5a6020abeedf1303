// Package page holds the parsed document tree that the extractor and the
// identifier scanner work on, independent of where the HTML came from.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrFrameInaccessible is returned when an embedded frame's document cannot
// be read, for example because it is cross-origin or was never loaded.
var ErrFrameInaccessible = errors.New("frame document not accessible")

// FrameRef identifies an <iframe> element of a document.
type FrameRef struct {
	ID  string
	Src string
}

// FrameResolver loads the inner document of an embedded frame.
type FrameResolver func(ref FrameRef) (*Document, error)

// Document is a snapshot of a page's DOM.
type Document struct {
	URL    string
	root   *goquery.Document
	frames FrameResolver
}

// Parse reads HTML from r into a Document.
func Parse(r io.Reader) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: goquery.NewDocumentFromNode(node)}, nil
}

// ParseString parses HTML from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ReadFile parses an HTML file from disk. Frames whose src points at a local
// relative path are resolved against the file's directory.
func ReadFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	doc.URL = "file://" + path
	return doc.WithFrames(DirFrames(filepath.Dir(path))), nil
}

// WithFrames attaches a resolver used for frames that carry no srcdoc.
func (d *Document) WithFrames(f FrameResolver) *Document {
	d.frames = f
	return d
}

// Find returns all nodes matching m in document order.
func (d *Document) Find(m goquery.Matcher) *goquery.Selection {
	return d.root.FindMatcher(m)
}

// Body returns the <body> element, which the HTML parser always synthesizes.
func (d *Document) Body() *goquery.Selection {
	return d.root.Find("body").First()
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return strings.TrimSpace(d.root.Find("head title").First().Text())
}

// Frame returns the inner document of the given <iframe> selection.
// An inline srcdoc is parsed directly; anything else goes through the
// resolver attached with WithFrames.
func (d *Document) Frame(iframe *goquery.Selection) (*Document, error) {
	if srcdoc, ok := iframe.Attr("srcdoc"); ok && strings.TrimSpace(srcdoc) != "" {
		return ParseString(srcdoc)
	}
	if d.frames == nil {
		return nil, ErrFrameInaccessible
	}
	id, _ := iframe.Attr("id")
	src, _ := iframe.Attr("src")
	return d.frames(FrameRef{ID: id, Src: src})
}

// DirFrames resolves frames whose src is a relative path under dir. Remote
// and absolute sources are reported as inaccessible.
func DirFrames(dir string) FrameResolver {
	return func(ref FrameRef) (*Document, error) {
		src := strings.TrimSpace(ref.Src)
		if src == "" || strings.Contains(src, "://") || filepath.IsAbs(src) || strings.HasPrefix(src, "//") {
			return nil, ErrFrameInaccessible
		}
		if i := strings.IndexAny(src, "?#"); i >= 0 {
			src = src[:i]
		}
		p := filepath.Join(dir, filepath.FromSlash(src))
		rel, err := filepath.Rel(dir, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, ErrFrameInaccessible
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameInaccessible, err)
		}
		return Parse(bytes.NewReader(b))
	}
}
