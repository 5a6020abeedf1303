// Package report exports a finished analysis as Markdown, JSON or PDF.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/jusia/internal/analysis"
)

// Markdown renders r as a Markdown document: a metadata list, the
// completion, and the prompt that produced it.
func Markdown(r analysis.Result) string {
	var b strings.Builder
	b.WriteString("# Análise jurídica\n\n")
	fmt.Fprintf(&b, "- Provedor: %s\n", r.Provider)
	if r.Model != "" {
		fmt.Fprintf(&b, "- Modelo: %s\n", r.Model)
	}
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Data: %s\n", r.CreatedAt.Format("2006-01-02 15:04 MST"))
	}
	if r.Source != "" {
		fmt.Fprintf(&b, "- Documento: %s\n", r.Source)
	}
	fmt.Fprintf(&b, "- Caracteres analisados: %d\n", r.DocumentChars)
	b.WriteString("\n## Resultado\n\n")
	b.WriteString(strings.TrimSpace(r.Completion))
	b.WriteString("\n\n## Prompt\n\n")
	b.WriteString(strings.TrimSpace(r.Prompt))
	b.WriteString("\n")
	return b.String()
}

// Write exports r to path. The format follows the extension: .pdf, .json,
// anything else is Markdown.
func Write(path string, r analysis.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return WritePDF(Markdown(r), path)
	case ".json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(b, '\n'), 0o644)
	default:
		return os.WriteFile(path, []byte(Markdown(r)), 0o644)
	}
}
