package repository

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageCount returns the number of pages of a PDF held in memory.
func PageCount(data []byte) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			n, err = 0, fmt.Errorf("count pdf pages: %v", p)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err = api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}

// AnalysisText is the text forwarded to analysis for a fetched document.
// PDFs are not converted; they are represented by a placeholder.
func AnalysisText(hash string, c Content) string {
	if c.Type != ContentPDF {
		return c.Text()
	}
	if c.Pages > 0 {
		return fmt.Sprintf("[PDF Document: %s] (%d pages)", hash, c.Pages)
	}
	return fmt.Sprintf("[PDF Document: %s]", hash)
}
