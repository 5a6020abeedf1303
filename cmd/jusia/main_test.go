package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/jusia/internal/docid"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePage(t *testing.T, name, html string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(html), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestExtract_MultipleSourcesInOrder(t *testing.T) {
	a := writePage(t, "a.html", `<div id="textoDocumento">Primeiro   documento</div>`)
	b := writePage(t, "b.html", `<main><p>Segundo</p></main>`)
	out, err := run(t, "--store.dir", t.TempDir(), "extract", "-f", "json", a, b)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var items []struct {
		Input  string `json:"input"`
		Text   string `json:"text"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(items) != 2 || items[0].Text != "Primeiro documento" || items[1].Text != "Segundo" || items[1].Input != b {
		t.Fatalf("items=%+v", items)
	}
}

func TestExtract_RejectsUnknownFormat(t *testing.T) {
	if _, err := run(t, "extract", "-f", "csv", "x.html"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestScan_PrintsReferences(t *testing.T) {
	p := writePage(t, "p.html", `<a onclick="visualizarDocumento('987654321')">Sentença</a>`)
	out, err := run(t, "--store.dir", t.TempDir(), "scan", p)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var refs []docid.Reference
	if err := json.Unmarshal([]byte(out), &refs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "987654321" {
		t.Fatalf("refs=%+v", refs)
	}
}

func TestConfigSetShowAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); !ok || u != "u" || p != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Decisão interlocutória"))
	}))
	defer srv.Close()

	store := t.TempDir()
	if _, err := run(t, "--store.dir", store, "config", "set", "--endpoint", srv.URL, "--username", "u", "--password", "p"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	out, err := run(t, "--store.dir", store, "config", "show")
	if err != nil || strings.Contains(out, `"p"`) || !strings.Contains(out, `"isConfigured": true`) {
		t.Fatalf("show=%q err=%v", out, err)
	}
	out, err = run(t, "--store.dir", store, "fetch", "abc")
	if err != nil || out != "Decisão interlocutória" {
		t.Fatalf("fetch=%q err=%v", out, err)
	}

	if _, err := run(t, "--store.dir", store, "config", "clear"); err != nil {
		t.Fatalf("config clear: %v", err)
	}
	if _, err := run(t, "--store.dir", store, "fetch", "abc"); err == nil || err.Error() != "S3 repository not configured" {
		t.Fatalf("fetch after clear: err=%v", err)
	}
}

func TestAnalyze_WritesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"completion":"Parecer favorável."}`))
	}))
	defer srv.Close()

	p := writePage(t, "p.html", `<div class="documento">Petição inicial</div>`)
	report := filepath.Join(t.TempDir(), "parecer.md")
	_, err := run(t, "--store.dir", t.TempDir(), "--provider", "lovable", "--key", "lk", "--llm.base", srv.URL, "analyze", p, "-o", report)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	b, err := os.ReadFile(report)
	if err != nil || !strings.Contains(string(b), "Parecer favorável.") || !strings.Contains(string(b), "- Provedor: lovable") {
		t.Fatalf("report=%q err=%v", b, err)
	}
}
