package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/jusia/internal/analysis"
)

var sample = analysis.Result{
	Provider:      "anthropic",
	Model:         "claude-3-opus-20240229",
	Prompt:        analysis.DefaultPrompt,
	Source:        "https://pje.example/doc/123456789",
	DocumentChars: 4200,
	Completion:    "1. RESUMO DO CASO\n\n- Ação de cobrança.\n- Ver [CPC art. 319](https://www.planalto.gov.br/ccivil_03/_ato2015-2018/2015/lei/l13105.htm).",
	CreatedAt:     time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC),
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sample)
	for _, want := range []string{
		"# Análise jurídica",
		"- Provedor: anthropic",
		"- Modelo: claude-3-opus-20240229",
		"- Data: 2024-05-02 14:30 UTC",
		"- Documento: https://pje.example/doc/123456789",
		"## Resultado\n\n1. RESUMO DO CASO",
		"## Prompt\n\nVocê é um assessor jurídico",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWrite_ByExtension(t *testing.T) {
	dir := t.TempDir()

	mdPath := filepath.Join(dir, "out", "analise.md")
	if err := Write(mdPath, sample); err != nil {
		t.Fatalf("write md: %v", err)
	}
	b, err := os.ReadFile(mdPath)
	if err != nil || !strings.HasPrefix(string(b), "# Análise jurídica") {
		t.Fatalf("md=%q err=%v", b, err)
	}

	jsonPath := filepath.Join(dir, "analise.json")
	if err := Write(jsonPath, sample); err != nil {
		t.Fatalf("write json: %v", err)
	}
	b, _ = os.ReadFile(jsonPath)
	var back analysis.Result
	if err := json.Unmarshal(b, &back); err != nil || back.Completion != sample.Completion {
		t.Fatalf("json=%s err=%v", b, err)
	}

	pdfPath := filepath.Join(dir, "analise.pdf")
	if err := Write(pdfPath, sample); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	b, _ = os.ReadFile(pdfPath)
	if !strings.HasPrefix(string(b), "%PDF-") {
		t.Fatalf("not a pdf: %q", b[:min(len(b), 16)])
	}
}
