package extract

import "github.com/hyperifyio/jusia/internal/page"

// Extractor defines a minimal interface for content extraction strategies.
// Implementations can swap heuristics without changing callers.
type Extractor interface {
	// Extract returns the normalized document text of doc.
	Extract(doc *page.Document) Result
}

// LadderExtractor uses the PJe container selectors followed by the fallback
// ladder.
type LadderExtractor struct{}

func (LadderExtractor) Extract(doc *page.Document) Result {
	return FromPage(doc)
}
